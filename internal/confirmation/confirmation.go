// Package confirmation handles interactive prompts for destructive
// operations, primarily the manual seal command.
package confirmation

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"xtrabackup-runner/internal/backup"
	"xtrabackup-runner/internal/display"
)

// ConfirmationService prompts the operator before irreversible actions
type ConfirmationService interface {
	ConfirmSeal(status backup.ChainStatus, autoApprove bool) (bool, error)
	PromptPassword(prompt string) (string, error)
}

type confirmationService struct {
	displayService *display.Service
	reader         *bufio.Reader
	input          io.Reader
}

// NewConfirmationService creates a confirmation service reading from stdin
func NewConfirmationService(displayService *display.Service) ConfirmationService {
	return &confirmationService{
		displayService: displayService,
		reader:         bufio.NewReader(os.Stdin),
		input:          os.Stdin,
	}
}

// ConfirmSeal shows what a manual seal will do and asks for a yes/no
// answer. An interrupt while waiting counts as "no".
func (cs *confirmationService) ConfirmSeal(status backup.ChainStatus, autoApprove bool) (bool, error) {
	cs.displaySealSummary(status)

	if autoApprove {
		cs.displayService.Success("Auto-approving seal")
		return true, nil
	}

	interruptChan := make(chan os.Signal, 1)
	signal.Notify(interruptChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interruptChan)

	inputChan := make(chan string, 1)
	errorChan := make(chan error, 1)

	go func() {
		input, err := cs.promptForConfirmation()
		if err != nil {
			errorChan <- err
			return
		}
		inputChan <- input
	}()

	select {
	case <-interruptChan:
		cs.displayService.Warning("Seal cancelled")
		return false, nil
	case err := <-errorChan:
		return false, fmt.Errorf("failed to read user input: %w", err)
	case input := <-inputChan:
		return cs.parseConfirmationInput(input)
	}
}

func (cs *confirmationService) displaySealSummary(status backup.ChainStatus) {
	s := cs.displayService

	s.PrintHeader("Seal Current Chain")
	s.PrintKeyValue("Backup root", status.BackupRoot)
	s.PrintKeyValue("Base backup", fmt.Sprintf("%v", status.HasBase))
	s.PrintKeyValue("Incrementals", fmt.Sprintf("%d", status.IncrementalCount))
	if !status.NewestEntry.IsZero() {
		s.PrintKeyValue("Newest entry", status.NewestEntry.Format(time.RFC3339))
	}

	s.Warning("Sealing archives the whole chain and clears the backup root.")
	s.Warning("The next cycle will start a fresh base backup.")
}

func (cs *confirmationService) promptForConfirmation() (string, error) {
	fmt.Print("Seal the current chain now? [y/N]: ")

	input, err := cs.reader.ReadString('\n')
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(input), nil
}

func (cs *confirmationService) parseConfirmationInput(input string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true, nil
	case "n", "no", "":
		return false, nil
	default:
		fmt.Printf("Invalid input %q. Please enter 'y' or 'n'.\n", input)
		next, err := cs.promptForConfirmation()
		if err != nil {
			return false, err
		}
		return cs.parseConfirmationInput(next)
	}
}

// PromptPassword reads a password without echoing it when stdin is a
// terminal, and falls back to a plain line read otherwise.
func (cs *confirmationService) PromptPassword(prompt string) (string, error) {
	fmt.Print(prompt)

	if f, ok := cs.input.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(raw), nil
	}

	line, err := cs.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
