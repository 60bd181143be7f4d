package actions

import (
	"fmt"
	"strings"

	"github.com/doeshing/deskgate/internal/domain"
)

// winRTPrelude loads the Windows.Devices.Radios API and leaves the radio list
// in $radios.
const winRTPrelude = `Add-Type -AssemblyName System.Runtime.WindowsRuntime
$asTaskGeneric = ([System.WindowsRuntimeSystemExtensions].GetMethods() | Where-Object { $_.Name -eq 'AsTask' -and $_.GetParameters().Count -eq 1 -and $_.GetParameters()[0].ParameterType.Name -eq 'IAsyncOperation` + "`" + `1' })[0]
Function Await($WinRtTask, $ResultType) {
    $asTask = $asTaskGeneric.MakeGenericMethod($ResultType)
    $netTask = $asTask.Invoke($null, @($WinRtTask))
    $netTask.Wait(-1) | Out-Null
    $netTask.Result
}
[Windows.Devices.Radios.Radio,Windows.System.Devices,ContentType=WindowsRuntime] | Out-Null
[Windows.Devices.Radios.RadioAccessStatus,Windows.System.Devices,ContentType=WindowsRuntime] | Out-Null
[Windows.Devices.Radios.RadioState,Windows.System.Devices,ContentType=WindowsRuntime] | Out-Null
Await ([Windows.Devices.Radios.Radio]::RequestAccessAsync()) ([Windows.Devices.Radios.RadioAccessStatus]) | Out-Null
$radios = Await ([Windows.Devices.Radios.Radio]::GetRadiosAsync()) ([System.Collections.Generic.IReadOnlyList[Windows.Devices.Radios.Radio]])
`

// setRadioScript switches every Bluetooth radio. desired is On, Off or an
// empty string to invert the current state.
const setRadioScript = `
$bluetooth = @($radios | Where-Object { $_.Kind -eq 'Bluetooth' })
if ($bluetooth.Count -eq 0) { Write-Error 'No Bluetooth adapter found'; exit 2 }
foreach ($radio in $bluetooth) {
    $target = '%s'
    if ($target -eq '') { if ($radio.State -eq 'On') { $target = 'Off' } else { $target = 'On' } }
    if ($radio.State -eq $target) { Write-Output "Bluetooth already $target"; continue }
    $status = Await ($radio.SetStateAsync($target)) ([Windows.Devices.Radios.RadioAccessStatus])
    if ($status -ne 'Allowed') { Write-Error "Bluetooth change was refused: $status"; exit 1 }
    Write-Output "Bluetooth turned $target"
}
`

// scriptBuilders render privileged scripts in the host's script language:
// PowerShell on Windows and POSIX sh elsewhere.
type scriptBuilders struct {
	goos string
}

func (s *scriptBuilders) bluetoothOn(domain.Action) (string, error) {
	return s.bluetooth("On", "rfkill unblock bluetooth && echo 'Bluetooth turned On'")
}

func (s *scriptBuilders) bluetoothOff(domain.Action) (string, error) {
	return s.bluetooth("Off", "rfkill block bluetooth && echo 'Bluetooth turned Off'")
}

func (s *scriptBuilders) bluetoothToggle(domain.Action) (string, error) {
	return s.bluetooth("", `if rfkill list bluetooth | grep -q 'Soft blocked: yes'; then
  rfkill unblock bluetooth && echo 'Bluetooth turned On'
else
  rfkill block bluetooth && echo 'Bluetooth turned Off'
fi`)
}

func (s *scriptBuilders) bluetooth(desired, posix string) (string, error) {
	switch s.goos {
	case "windows":
		return winRTPrelude + fmt.Sprintf(setRadioScript, desired), nil
	case "linux":
		return posix, nil
	default:
		return "", fmt.Errorf("bluetooth control is not supported on %s", s.goos)
	}
}

// runPowerShell passes the script through on Windows and wraps it in pwsh
// elsewhere.
func (s *scriptBuilders) runPowerShell(action domain.Action) (string, error) {
	script, err := requireString(action, "script")
	if err != nil {
		return "", err
	}
	if s.goos == "windows" {
		return script, nil
	}
	return "pwsh -NoProfile -NonInteractive -Command " + shQuote(script), nil
}

func shQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
