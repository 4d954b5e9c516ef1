package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"evalgo.org/sitesync/internal/apply"
	"evalgo.org/sitesync/internal/declfile"
	"evalgo.org/sitesync/pkg/sitesync/client"
	"evalgo.org/sitesync/reconcile"
)

var (
	applyDryRun bool
	applySites  []string
	applyJSON   bool
	applyServer string
	applyAPIKey string
)

var applyCmd = &cobra.Command{
	Use:   "apply [files or directories...]",
	Short: "Reconcile the store with site declarations",
	Long: `Load site declarations and converge the store onto them. Each site is
applied in its own transaction; a failing site is rolled back without
affecting the others.

With no arguments the paths from declarations.paths are used.

With --server the declarations are sent to a running SiteSync server and
applied to its store; placeholders are then resolved by the server. Without
file arguments the server re-applies its own configured paths.

Examples:
  sitesync apply
  sitesync apply sites/main.yaml --site main
  sitesync apply ./sites --dry-run`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "apply and roll back, reporting what would change")
	applyCmd.Flags().StringSliceVar(&applySites, "site", nil, "only apply these sites (default: reconcile.sites, else all)")
	applyCmd.Flags().BoolVar(&applyJSON, "json", false, "print the apply report as JSON")
	applyCmd.Flags().StringVar(&applyServer, "server", "", "apply through the admin API at this URL")
	applyCmd.Flags().StringVar(&applyAPIKey, "api-key", "", "API key for --server (default: first security.api_keys entry)")
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if applyServer != "" {
		return runRemoteApply(ctx, args)
	}

	store, err := openStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	sites := applySites
	if len(sites) == 0 {
		sites = cfg.Reconcile.Sites
	}

	svc := apply.NewService(store, cfg.Placeholders, logger)
	report, err := svc.Paths(ctx, declarationPaths(args), apply.Options{
		Sites:       sites,
		StopOnError: !cfg.Reconcile.ContinueOnError,
		DryRun:      applyDryRun,
	})
	if report == nil {
		return err
	}

	if applyJSON {
		data, merr := json.MarshalIndent(report, "", "  ")
		if merr != nil {
			return fmt.Errorf("failed to marshal JSON: %w", merr)
		}
		fmt.Println(string(data))
	} else {
		printApplyReport(report)
	}

	if err != nil {
		return fmt.Errorf("%d of %d sites failed: %w", report.Failed, len(report.Results), err)
	}
	return nil
}

func printApplyReport(report *apply.Report) {
	if report.DryRun {
		fmt.Println("Dry run: nothing was persisted")
		fmt.Println()
	}
	for _, r := range report.Results {
		run := r.Run
		status := "✓"
		if !run.Succeeded() {
			status = "✗"
		}
		fmt.Printf("%s %s (%s)\n", status, r.Site, run.Phase)
		fmt.Printf("    created %d, updated %d, revised %d, trashed %d, skipped %d\n",
			run.Stats.Created, run.Stats.Updated, run.Stats.Revised, run.Stats.Trashed, run.Stats.Skipped)
		for _, e := range run.Events {
			if e.Type == reconcile.EventInfo {
				continue
			}
			fmt.Printf("    %s [%s] %s %s: %s\n", e.Type, e.Phase, e.Entity, e.ID, e.Message)
		}
	}
	fmt.Println()
	fmt.Printf("%d sites applied in %v, %d failed\n", len(report.Results), report.Duration, report.Failed)
}

func runRemoteApply(ctx context.Context, args []string) error {
	key := applyAPIKey
	if key == "" && len(cfg.Security.APIKeys) > 0 {
		key = cfg.Security.APIKeys[0]
	}
	c, err := client.New(applyServer, client.WithAPIKey(key))
	if err != nil {
		return err
	}

	var document []byte
	if len(args) > 0 {
		doc, err := declfile.LoadPaths(args)
		if err != nil {
			return err
		}
		if document, err = yaml.Marshal(doc); err != nil {
			return fmt.Errorf("failed to encode declarations: %w", err)
		}
	}

	result, err := c.Apply(ctx, document, "application/yaml", client.ApplyOptions{DryRun: applyDryRun, Sites: applySites})
	if result == nil {
		return err
	}

	if applyJSON {
		data, merr := json.MarshalIndent(result, "", "  ")
		if merr != nil {
			return fmt.Errorf("failed to marshal JSON: %w", merr)
		}
		fmt.Println(string(data))
	} else {
		if result.DryRun {
			fmt.Println("Dry run: nothing was persisted")
			fmt.Println()
		}
		for _, r := range result.Results {
			status := "✓"
			if r.ErrorMessage != "" {
				status = "✗"
			}
			fmt.Printf("%s %s (%s)\n", status, r.Site, r.Phase)
			fmt.Printf("    created %d, updated %d, revised %d, trashed %d, skipped %d\n",
				r.Stats.Created, r.Stats.Updated, r.Stats.Revised, r.Stats.Trashed, r.Stats.Skipped)
			if r.ErrorMessage != "" {
				fmt.Printf("    %s\n", r.ErrorMessage)
			}
		}
		fmt.Println()
		fmt.Printf("%d sites applied on %s, %d failed\n", len(result.Results), applyServer, result.Failed)
	}

	if err != nil {
		return fmt.Errorf("%d of %d sites failed: %w", result.Failed, len(result.Results), err)
	}
	return nil
}
