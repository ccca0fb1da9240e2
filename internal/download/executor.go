package download

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Executor runs the external fetch tool and streams its output lines.
// Tests substitute a fake that replays canned yt-dlp output.
type Executor interface {
	// Run executes the binary with the given arguments, invoking onLine
	// for every line of standard output. It returns once the process
	// exits, with an error carrying the stderr tail on failure.
	Run(ctx context.Context, binary string, args []string, onLine func(line string)) error
}

// CommandExecutor is the production [Executor], running the tool through
// os/exec.
type CommandExecutor struct{}

// stderrTailLines bounds how much captured stderr ends up in errors.
const stderrTailLines = 5

// Run executes the command, scanning stdout line by line
func (CommandExecutor) Run(ctx context.Context, binary string, args []string, onLine func(line string)) error {
	cmd := exec.CommandContext(ctx, binary, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", binary, err)
	}

	// Drain stderr concurrently so the process can't block on a full pipe.
	errLines := make(chan []string, 1)
	go func() {
		var tail []string
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			tail = append(tail, scanner.Text())
			if len(tail) > stderrTailLines {
				tail = tail[1:]
			}
		}
		errLines <- tail
	}()

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		onLine(scanner.Text())
	}
	scanErr := scanner.Err()

	tail := <-errLines
	if err := cmd.Wait(); err != nil {
		if len(tail) > 0 {
			return fmt.Errorf("%s failed: %w: %s", binary, err, strings.Join(tail, "; "))
		}
		return fmt.Errorf("%s failed: %w", binary, err)
	}
	if scanErr != nil {
		return fmt.Errorf("%s output truncated: %w", binary, scanErr)
	}

	return nil
}
