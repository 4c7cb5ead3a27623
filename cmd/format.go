package cmd

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/rubiojr/kallitechnia/pkg/storage"
)

// formatNumber formats a number with K/M suffixes for readability
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	} else if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	} else {
		return fmt.Sprintf("%.1fM", float64(n)/1000000)
	}
}

// formatTime formats a time relative to now or as an absolute date
func formatTime(t time.Time) string {
	now := time.Now()
	diff := now.Sub(t)

	// If it's within the last day, show relative time
	if diff < 24*time.Hour {
		if diff < time.Hour {
			minutes := int(diff.Minutes())
			if minutes < 1 {
				return "just now"
			}
			return fmt.Sprintf("%d minutes ago", minutes)
		}
		hours := int(diff.Hours())
		return fmt.Sprintf("%d hours ago", hours)
	}

	// If it's within the last week, show days ago
	if diff < 7*24*time.Hour {
		days := int(diff.Hours() / 24)
		return fmt.Sprintf("%d days ago", days)
	}

	// Otherwise show the date
	if t.Year() == now.Year() {
		return t.Format("Jan 2, 15:04")
	}
	return t.Format("Jan 2, 2006")
}

// formatDuration formats a duration in human-readable form
func formatDuration(d time.Duration) string {
	if d < time.Hour {
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	} else if d < 24*time.Hour {
		return fmt.Sprintf("%.1f hours", d.Hours())
	} else if d < 30*24*time.Hour {
		return fmt.Sprintf("%.1f days", d.Hours()/24)
	} else if d < 365*24*time.Hour {
		return fmt.Sprintf("%.1f months", d.Hours()/(24*30))
	} else {
		return fmt.Sprintf("%.1f years", d.Hours()/(24*365))
	}
}

// formatSize formats a byte count with KiB/MiB suffixes
func formatSize(n int) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KiB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1024*1024))
	}
}

// formatSnapshots prints the snapshot store contents, oldest first
func formatSnapshots(w io.Writer, snapshots []storage.Snapshot) {
	fmt.Fprintf(w, "📦 CMS Snapshots\n")
	fmt.Fprintf(w, "═══════════════\n\n")

	if len(snapshots) == 0 {
		fmt.Fprintf(w, "No snapshots stored yet.\n")
		return
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].UpdatedAt.Before(snapshots[j].UpdatedAt)
	})

	total, stored := 0, 0
	for _, s := range snapshots {
		total += s.Size
		stored += s.Stored
		fmt.Fprintf(w, "📁 %s\n", s.Key)
		fmt.Fprintf(w, "   Size:    %s (%s stored, %s)\n", formatSize(s.Size), formatSize(s.Stored), s.Encoding)
		fmt.Fprintf(w, "   Updated: %s\n", formatTime(s.UpdatedAt))
	}

	fmt.Fprintf(w, "\nTotal snapshots: %s\n", formatNumber(len(snapshots)))
	fmt.Fprintf(w, "Total size: %s (%s stored)\n", formatSize(total), formatSize(stored))
	if oldest := snapshots[0].UpdatedAt; !oldest.IsZero() {
		fmt.Fprintf(w, "Oldest: %s old\n", formatDuration(time.Since(oldest)))
	}
}
