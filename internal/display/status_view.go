package display

import (
	"fmt"
	"time"

	"xtrabackup-runner/internal/backup"
)

// StatusView renders chain and cycle summaries for the CLI
type StatusView struct {
	service *Service
}

// NewStatusView creates a status view on top of a display service
func NewStatusView(service *Service) *StatusView {
	return &StatusView{service: service}
}

// RenderChainStatus prints the state of the backup chain and the archive
// directory.
func (v *StatusView) RenderChainStatus(status backup.ChainStatus) {
	s := v.service

	s.PrintHeader("Backup Chain")
	s.PrintKeyValue("Backup root", status.BackupRoot)
	s.PrintKeyValue("Base backup", yesNo(status.HasBase))
	s.PrintKeyValue("Incrementals", fmt.Sprintf("%d", status.IncrementalCount))

	if !status.NewestEntry.IsZero() {
		s.PrintKeyValue("Newest entry", status.NewestEntry.Format(time.RFC3339))
		s.PrintKeyValue("Chain age", status.ChainAge.Round(time.Minute).String())
	}

	switch {
	case !status.HasBase:
		s.Warning("No base backup yet; the next cycle starts a fresh chain")
	case status.Stale:
		s.Warning("Chain is stale; the next cycle will seal or discard it")
	default:
		s.Success("Chain is healthy")
	}

	s.PrintHeader("Archives")
	s.PrintKeyValue("Archive root", status.ArchiveRoot)
	if len(status.Archives) == 0 {
		s.Info("No archives sealed yet")
		return
	}
	s.PrintKeyValue("Total size", FormatBytes(status.ArchiveBytes))

	headers := []string{"Archive", "Sealed", "Size"}
	rows := make([][]string, 0, len(status.Archives))
	for _, a := range status.Archives {
		rows = append(rows, []string{
			a.Name,
			a.Timestamp.Format("2006-01-02 15:04:05"),
			FormatBytes(a.SizeBytes),
		})
	}
	s.PrintTable(headers, rows)
}

// RenderCycleResult prints the outcome of one completed cycle.
func (v *StatusView) RenderCycleResult(result backup.CycleResult) {
	s := v.service

	switch result.Status {
	case backup.CycleStatusBackupAdded:
		s.Success(fmt.Sprintf("Backup added to chain (%s, %s)",
			result.Reason, result.Duration.Round(time.Second)))
	case backup.CycleStatusArchivedAndBaseAdded:
		s.Success(fmt.Sprintf("Chain sealed and fresh base taken (%s, %s)",
			result.Reason, result.Duration.Round(time.Second)))
		if result.Archive != nil {
			s.PrintKeyValue("Archive", result.Archive.Path)
			s.PrintKeyValue("Size", FormatBytes(result.Archive.SizeBytes))
			for _, replica := range result.Archive.Replicas {
				s.PrintKeyValue("Replica", replica)
			}
		}
	case backup.CycleStatusFailed:
		msg := "Backup cycle failed"
		if result.Err != nil {
			msg = fmt.Sprintf("Backup cycle failed: %v", result.Err)
		}
		s.Error(msg)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
