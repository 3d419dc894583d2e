package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fclairamb/docmap/internal/config"
	"github.com/fclairamb/docmap/internal/freshdesk"
	"github.com/fclairamb/docmap/internal/mapping"
	"github.com/fclairamb/docmap/internal/store"
	"github.com/fclairamb/docmap/internal/sync"
)

const (
	// Time duration constants for relative time formatting.
	hoursPerDay  = 24
	daysPerWeek  = 7
	daysPerMonth = 30
)

var displayActions = []sync.Action{sync.ActionCreate, sync.ActionUpdate, sync.ActionDelete}

func displayInit(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "Content:  %s\n", cfg.ContentPath())
	fmt.Fprintf(w, "Mappings: %s\n", cfg.MappingPath())
	fmt.Fprintln(w, "\nAdd category directories to the content tree, then run 'scan' or 'sync'.")
}

// displayReport prints the outcome of a pass.
func displayReport(w io.Writer, report *sync.Report) {
	res := report.Result
	fmt.Fprintf(w, "Pass %s (%s)\n\n", report.PassID, report.Duration.Round(time.Millisecond))

	if res != nil {
		fmt.Fprintf(w, "%-10s %8s %8s %8s\n", "", "create", "update", "delete")
		for _, kind := range mapping.Kinds {
			fmt.Fprintf(w, "%-10s", kind.String())
			for _, action := range displayActions {
				fmt.Fprintf(w, " %8d", res.Count(kind, action))
			}
			fmt.Fprintln(w)
		}

		if len(res.Renames) > 0 {
			fmt.Fprintln(w, "\nRenamed:")
			for _, r := range res.Renames {
				fmt.Fprintf(w, "  %s -> %s\n", r.From, r.To)
			}
		}
		for _, warning := range res.Warnings {
			fmt.Fprintf(w, "Warning: %v\n", warning)
		}
	}

	if push := report.Push; push != nil {
		fmt.Fprintf(w, "\nRemote: %d created, %d updated, %d deleted, %d deferred, %d failed\n",
			len(push.Created), len(push.Updated), len(push.Deleted), len(push.Deferred), len(push.Failed))
		for _, err := range push.Failed {
			fmt.Fprintf(w, "Failed: %v\n", err)
		}
	}

	if pending := report.Pending(); len(pending) > 0 {
		fmt.Fprintf(w, "\nPending for next pass: %d\n", len(pending))
		for _, key := range pending {
			fmt.Fprintf(w, "  - %s\n", key)
		}
	}

	switch {
	case !report.Changed:
		fmt.Fprintln(w, "\nNothing changed.")
	case report.Published:
		fmt.Fprintln(w, "\nChanges committed and pushed.")
	case report.Committed:
		fmt.Fprintln(w, "\nChanges committed.")
	}
}

// displayStatus prints the mapping counts per kind and the working copy state.
func displayStatus(w io.Writer, st *mapping.Store, repo *store.Repository) error {
	fmt.Fprintln(w, "docmap status")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-10s %8s %8s %8s %8s\n", "", "total", "synced", "pending", "stale")

	for _, kind := range mapping.Kinds {
		synced, stale := 0, 0
		for _, id := range st.IDs(kind) {
			entry := st.Entry(mapping.Key{Kind: kind, ID: id})
			if entry.Remote != nil {
				synced++
			}
			if entry.RemoteStale {
				stale++
			}
		}
		total := st.Len(kind)
		fmt.Fprintf(w, "%-10s %8d %8d %8d %8d\n", kind.String(), total, synced, total-synced, stale)
	}

	fmt.Fprintf(w, "\nLast identifiers: category %d, folder %d, article %d\n",
		st.Counters.Category, st.Counters.Folder, st.Counters.Article)

	if repo == nil {
		fmt.Fprintln(w, "\nRepository: not initialized")
		return nil
	}

	last, err := repo.LastCommit()
	if err != nil {
		return err
	}
	changes, err := repo.Changes()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\nLast commit: %s\n", formatTimeSince(last))
	if len(changes) == 0 {
		fmt.Fprintln(w, "Working copy: clean")
		return nil
	}
	fmt.Fprintf(w, "Working copy: %d uncommitted changes\n", len(changes))
	for _, path := range changes {
		fmt.Fprintf(w, "  - %s\n", path)
	}
	return nil
}

// displayRemoteConfig displays the remote git configuration.
func displayRemoteConfig(w io.Writer, cfg *store.RemoteConfig) {
	fmt.Fprintln(w, "Remote Git Configuration")
	fmt.Fprintln(w)

	effectiveMode := cfg.EffectiveStorageMode()
	if cfg.Storage == "" {
		fmt.Fprintf(w, "Storage:  %s (auto-detected)\n", effectiveMode)
	} else {
		fmt.Fprintf(w, "Storage:  %s\n", effectiveMode)
	}

	if effectiveMode == store.StorageModeLocal {
		fmt.Fprintln(w, "\nRemote operations disabled (local-only mode)")
		if cfg.URL != "" {
			fmt.Fprintf(w, "URL:      %s (ignored due to DOCMAP_STORAGE=local)\n", cfg.URL)
		}
		return
	}

	fmt.Fprintf(w, "URL:      %s\n", cfg.URL)
	if cfg.IsSSH() {
		fmt.Fprintln(w, "Auth:     SSH (using ssh-agent)")
	} else if cfg.Password != "" {
		fmt.Fprintln(w, "Auth:     HTTPS (token configured)")
	} else {
		fmt.Fprintln(w, "Auth:     HTTPS (WARNING: DOCMAP_GIT_PASS not set)")
	}
	fmt.Fprintf(w, "Branch:   %s\n", cfg.Branch)
	if cfg.PushRef != "" {
		fmt.Fprintf(w, "Push ref: %s\n", cfg.PushRef)
	}
	fmt.Fprintf(w, "User:     %s\n", cfg.User)
	fmt.Fprintf(w, "Email:    %s\n", cfg.Email)
	fmt.Fprintf(w, "Commit:   %t\n", cfg.IsCommitEnabled())
	fmt.Fprintf(w, "Push:     %t\n", cfg.IsPushEnabled())
}

// displayConnectionTest tests the connection and displays the result.
func displayConnectionTest(ctx context.Context, w io.Writer, cfg *store.RemoteConfig) error {
	fmt.Fprintf(w, "Testing connection to %s...\n", cfg.URL)

	if testErr := cfg.TestConnection(ctx); testErr != nil {
		return fmt.Errorf("connection test failed: %w", testErr)
	}

	fmt.Fprintln(w, "Connection successful!")
	return nil
}

func displayKnowledgeBaseCheck(ctx context.Context, w io.Writer, client *freshdesk.Client) error {
	fmt.Fprintf(w, "Checking %s...\n", client.BaseURL())

	categories, err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("knowledge base check failed: %w", err)
	}

	fmt.Fprintf(w, "Connection successful, %d categories visible.\n", categories)
	return nil
}

// formatTimeSince formats a time duration in a human-readable way.
func formatTimeSince(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	duration := time.Since(t)

	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		minutes := int(duration.Minutes())
		if minutes == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", minutes)
	case duration < hoursPerDay*time.Hour:
		hours := int(duration.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case duration < daysPerWeek*hoursPerDay*time.Hour:
		days := int(duration.Hours() / hoursPerDay)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	case duration < daysPerMonth*hoursPerDay*time.Hour:
		weeks := int(duration.Hours() / hoursPerDay / daysPerWeek)
		if weeks == 1 {
			return "1 week ago"
		}
		return fmt.Sprintf("%d weeks ago", weeks)
	default:
		months := int(duration.Hours() / hoursPerDay / daysPerMonth)
		if months == 1 {
			return "1 month ago"
		}
		return fmt.Sprintf("%d months ago", months)
	}
}
