package actions

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/doeshing/deskgate/internal/domain"
)

// ProcessInfo is one row of the process table.
type ProcessInfo struct {
	PID    int
	Name   string
	Memory uint64
}

// ProcessLister returns a snapshot of running processes.
type ProcessLister func(ctx context.Context) ([]ProcessInfo, error)

type systemActions struct {
	env *env
}

func (s *systemActions) topProcesses(ctx context.Context, action domain.Action) (string, error) {
	limit := action.IntArg("limit", domain.DefaultTopProcesses)
	procs, err := s.env.processes(ctx)
	if err != nil {
		return "", fmt.Errorf("read process table: %w", err)
	}
	sort.SliceStable(procs, func(i, j int) bool { return procs[i].Memory > procs[j].Memory })
	total := len(procs)
	if len(procs) > limit {
		procs = procs[:limit]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Top %d of %d processes by memory", len(procs), total)
	for i, p := range procs {
		fmt.Fprintf(&b, "\n%2d. %s (pid %d) %s", i+1, p.Name, p.PID, humanize.IBytes(p.Memory))
	}
	return b.String(), nil
}

func hostProcessLister(e *env) ProcessLister {
	return func(ctx context.Context) ([]ProcessInfo, error) {
		if e.goos == "windows" {
			res, err := e.runner.Run(ctx, domain.Command{
				Name: "powershell.exe",
				Args: []string{"-NoProfile", "-NonInteractive", "-Command",
					"Get-Process | Select-Object Id,ProcessName,WorkingSet64 | ConvertTo-Json -Compress"},
			})
			if err != nil {
				return nil, err
			}
			if res.ExitCode != 0 {
				return nil, fmt.Errorf("Get-Process exited %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
			}
			return parseWindowsProcesses(res.Stdout)
		}
		res, err := e.runner.Run(ctx, domain.Command{Name: "ps", Args: []string{"-axo", "pid=,rss=,comm="}})
		if err != nil {
			return nil, err
		}
		if res.ExitCode != 0 {
			return nil, fmt.Errorf("ps exited %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
		}
		return parsePSOutput(res.Stdout), nil
	}
}

// parseWindowsProcesses decodes ConvertTo-Json output, which is a bare object
// when only one process matches.
func parseWindowsProcesses(out string) ([]ProcessInfo, error) {
	type row struct {
		ID           int    `json:"Id"`
		ProcessName  string `json:"ProcessName"`
		WorkingSet64 uint64 `json:"WorkingSet64"`
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return nil, nil
	}
	var rows []row
	if strings.HasPrefix(out, "{") {
		var single row
		if err := json.Unmarshal([]byte(out), &single); err != nil {
			return nil, err
		}
		rows = []row{single}
	} else if err := json.Unmarshal([]byte(out), &rows); err != nil {
		return nil, err
	}
	procs := make([]ProcessInfo, 0, len(rows))
	for _, r := range rows {
		procs = append(procs, ProcessInfo{PID: r.ID, Name: r.ProcessName, Memory: r.WorkingSet64})
	}
	return procs, nil
}

// parsePSOutput reads "pid rss comm" lines; rss is in KiB.
func parsePSOutput(out string) []ProcessInfo {
	var procs []ProcessInfo
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		rss, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			continue
		}
		procs = append(procs, ProcessInfo{PID: pid, Name: strings.Join(fields[2:], " "), Memory: rss * 1024})
	}
	return procs
}

const bluetoothStateScript = winRTPrelude + `
$bluetooth = $radios | Where-Object { $_.Kind -eq 'Bluetooth' } | Select-Object -First 1
if ($bluetooth) { Write-Output $bluetooth.State } else { Write-Output 'NotFound' }
`

func (s *systemActions) bluetoothState(ctx context.Context, _ domain.Action) (string, error) {
	var (
		state string
		err   error
	)
	switch s.env.goos {
	case "windows":
		state, err = s.windowsBluetoothState(ctx)
	case "linux":
		state, err = s.linuxBluetoothState(ctx)
	default:
		return "", fmt.Errorf("bluetooth_state is not supported on %s", s.env.goos)
	}
	if err != nil {
		return "", err
	}
	return "Bluetooth is currently " + state, nil
}

func (s *systemActions) windowsBluetoothState(ctx context.Context) (string, error) {
	res, err := s.env.runner.Run(ctx, domain.Command{
		Name: "powershell.exe",
		Args: []string{"-NoProfile", "-NonInteractive", "-Command", bluetoothStateScript},
	})
	if err != nil {
		return "", err
	}
	return interpretRadioState(res.Stdout)
}

func interpretRadioState(out string) (string, error) {
	switch strings.TrimSpace(out) {
	case "On":
		return "ON", nil
	case "Off", "Disabled":
		return "OFF", nil
	case "NotFound":
		return "", errors.New("no Bluetooth adapter found")
	default:
		return "", fmt.Errorf("unexpected Bluetooth state %q", strings.TrimSpace(out))
	}
}

func (s *systemActions) linuxBluetoothState(ctx context.Context) (string, error) {
	res, err := s.env.runner.Run(ctx, domain.Command{Name: "bluetoothctl", Args: []string{"show"}})
	if err != nil {
		return "", err
	}
	return interpretBluetoothctl(res.Stdout)
}

func interpretBluetoothctl(out string) (string, error) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Powered:") {
			continue
		}
		if strings.TrimSpace(strings.TrimPrefix(line, "Powered:")) == "yes" {
			return "ON", nil
		}
		return "OFF", nil
	}
	return "", errors.New("no Bluetooth adapter found")
}
