// Package declfile reads site declarations from YAML and HCL files and turns
// them into site models ready for reconciliation.
//
// Both formats decode into the same document types. A YAML file holds a
// top-level "sites" list; an HCL file holds "site" blocks:
//
//	site "main" {
//	  layout "default" {
//	    box "header" { area = "header" }
//	    box "content" {
//	      box "body" { area = "primary" }
//	    }
//	  }
//	  template "standard" {
//	    layout = "default"
//	  }
//	  page "Home" {
//	    path     = "/"
//	    template = "standard"
//	    box "body" {
//	      content "welcome" {
//	        kind = "text"
//	        html = "<p>hello</p>"
//	      }
//	    }
//	  }
//	  hostname "www.example.com" {
//	    welcome_page = "Home"
//	  }
//	}
package declfile

// Document is the content of one declaration file.
type Document struct {
	Sites []SiteDoc `yaml:"sites" hcl:"site,block" validate:"dive"`
}

// SiteDoc declares one site.
type SiteDoc struct {
	ID       string `yaml:"id" hcl:"id,label" validate:"required"`
	Locale   string `yaml:"locale,omitempty" hcl:"locale,optional"`
	Timezone string `yaml:"timezone,omitempty" hcl:"timezone,optional"`

	Layouts   []LayoutDoc   `yaml:"layouts,omitempty" hcl:"layout,block" validate:"dive"`
	Templates []TemplateDoc `yaml:"templates,omitempty" hcl:"template,block" validate:"dive"`
	Pages     []PageDoc     `yaml:"pages,omitempty" hcl:"page,block" validate:"dive"`

	// Content is top-level content that is not placed in a box
	Content []ContentDoc `yaml:"content,omitempty" hcl:"content,block" validate:"dive"`

	Hostnames []HostnameDoc `yaml:"hostnames,omitempty" hcl:"hostname,block" validate:"dive"`

	RemovePages   []string `yaml:"remove_pages,omitempty" hcl:"remove_pages,optional" validate:"dive,required"`
	RemoveContent []string `yaml:"remove_content,omitempty" hcl:"remove_content,optional" validate:"dive,required"`

	RemoveHostnames []string `yaml:"remove_hostnames,omitempty" hcl:"remove_hostnames,optional" validate:"dive,hostname_or_placeholder"`
}

// HostnameDoc binds an address to its welcome page.
type HostnameDoc struct {
	Address     string `yaml:"address" hcl:"address,label" validate:"hostname_or_placeholder"`
	WelcomePage string `yaml:"welcome_page" hcl:"welcome_page" validate:"required"`
}

// LayoutDoc declares a box tree.
type LayoutDoc struct {
	ID    string   `yaml:"id" hcl:"id,label" validate:"required"`
	Boxes []BoxDoc `yaml:"boxes" hcl:"box,block" validate:"min=1,dive"`
}

// BoxDoc declares a box. A box with children encloses them.
type BoxDoc struct {
	ID       string   `yaml:"id" hcl:"id,label" validate:"required"`
	Area     string   `yaml:"area,omitempty" hcl:"area,optional" validate:"omitempty,oneof=none primary secondary navigation header footer"`
	Class    string   `yaml:"class,omitempty" hcl:"class,optional"`
	Children []BoxDoc `yaml:"boxes,omitempty" hcl:"box,block" validate:"dive"`
}

// TemplateDoc declares a template over a layout.
type TemplateDoc struct {
	ID        string   `yaml:"id" hcl:"id,label" validate:"required"`
	Layout    string   `yaml:"layout" hcl:"layout" validate:"required"`
	Resources []string `yaml:"resources,omitempty" hcl:"resources,optional"`

	Boxes  []PlacementDoc `yaml:"boxes,omitempty" hcl:"box,block" validate:"dive"`
	Remove []string       `yaml:"remove,omitempty" hcl:"remove,optional"`
}

// PageDoc declares a page.
type PageDoc struct {
	ID       string `yaml:"id" hcl:"id,label" validate:"required"`
	Path     string `yaml:"path" hcl:"path" validate:"required,sitepath"`
	Title    string `yaml:"title,omitempty" hcl:"title,optional"`
	Template string `yaml:"template" hcl:"template" validate:"required"`

	Permission         *PermissionDoc `yaml:"permission,omitempty" hcl:"permission,block"`
	AuthenticationPage string         `yaml:"authentication_page,omitempty" hcl:"authentication_page,optional"`

	Boxes  []PlacementDoc `yaml:"boxes,omitempty" hcl:"box,block" validate:"dive"`
	Remove []string       `yaml:"remove,omitempty" hcl:"remove,optional"`
}

// PermissionDoc names the right a page requires.
type PermissionDoc struct {
	Name  string `yaml:"name" hcl:"name,label" validate:"required"`
	Title string `yaml:"title,omitempty" hcl:"title,optional"`
}

// PlacementDoc lists the content placed in one box, in order.
type PlacementDoc struct {
	Box     string       `yaml:"box" hcl:"box,label" validate:"required"`
	Content []ContentDoc `yaml:"content" hcl:"content,block" validate:"dive"`
}

// ContentDoc declares one piece of content. Which attributes apply depends
// on Kind.
type ContentDoc struct {
	ID   string `yaml:"id" hcl:"id,label" validate:"required"`
	Kind string `yaml:"kind" hcl:"kind" validate:"required,oneof=text link composite scripted login logout reset-password social-login file-server menu"`

	Path       string   `yaml:"path,omitempty" hcl:"path,optional" validate:"omitempty,sitepath"`
	HTMLID     string   `yaml:"html_id,omitempty" hcl:"html_id,optional"`
	HTMLClass  string   `yaml:"html_class,omitempty" hcl:"html_class,optional"`
	Resources  []string `yaml:"resources,omitempty" hcl:"resources,optional"`
	Visibility string   `yaml:"visibility,omitempty" hcl:"visibility,optional"`

	// text
	HTML string `yaml:"html,omitempty" hcl:"html,optional"`

	// link
	Label string `yaml:"label,omitempty" hcl:"label,optional"`
	URL   string `yaml:"url,omitempty" hcl:"url,optional"`
	Page  string `yaml:"page,omitempty" hcl:"page,optional"`

	// login, logout, reset-password, social-login
	LandingPage string   `yaml:"landing_page,omitempty" hcl:"landing_page,optional"`
	RememberMe  bool     `yaml:"remember_me,omitempty" hcl:"remember_me,optional"`
	TokenTTL    string   `yaml:"token_ttl,omitempty" hcl:"token_ttl,optional"`
	Providers   []string `yaml:"providers,omitempty" hcl:"providers,optional"`

	// file-server
	Directory string `yaml:"directory,omitempty" hcl:"directory,optional"`
	Listing   bool   `yaml:"listing,omitempty" hcl:"listing,optional"`

	// menu
	Items []MenuItemDoc `yaml:"items,omitempty" hcl:"item,block" validate:"dive"`

	// scripted
	Script     string            `yaml:"script,omitempty" hcl:"script,optional"`
	Parameters map[string]string `yaml:"parameters,omitempty" hcl:"parameters,optional"`

	// composite
	Delegates []DelegateDoc `yaml:"delegates,omitempty" hcl:"delegate,block" validate:"dive"`
	Remove    []string      `yaml:"remove,omitempty" hcl:"remove,optional"`
}

// MenuItemDoc is one menu entry pointing at a page.
type MenuItemDoc struct {
	Label string `yaml:"label" hcl:"label,label" validate:"required"`
	Page  string `yaml:"page" hcl:"page" validate:"required"`
}

// DelegateDoc attaches child content to a composite under a purpose.
type DelegateDoc struct {
	Purpose string     `yaml:"purpose" hcl:"purpose,label" validate:"required"`
	Content ContentDoc `yaml:"content" hcl:"content,block"`
}
