package desktop

// Scripts read their inputs from DESKGATE_* environment variables so that
// window titles and typed text never become part of the script source.

const uiaPrelude = `$ErrorActionPreference = 'Stop'
Add-Type -AssemblyName UIAutomationClient, UIAutomationTypes
$A = [System.Windows.Automation.AutomationElement]
function Get-Bounds($el) {
  $r = $el.Current.BoundingRectangle
  if ($r.IsEmpty -or [double]::IsInfinity($r.X)) { return @{ x = 0; y = 0; width = 0; height = 0 } }
  return @{ x = [int]$r.X; y = [int]$r.Y; width = [int]$r.Width; height = [int]$r.Height }
}
`

const windowsScript = uiaPrelude + `
$wins = $A::RootElement.FindAll([System.Windows.Automation.TreeScope]::Children, [System.Windows.Automation.Condition]::TrueCondition)
$out = foreach ($w in $wins) {
  $c = $w.Current
  $p = Get-Process -Id $c.ProcessId -ErrorAction SilentlyContinue
  [pscustomobject]@{
    handle  = [int64]$c.NativeWindowHandle
    pid     = $c.ProcessId
    process = if ($p) { $p.ProcessName } else { '' }
    title   = $c.Name
    class   = $c.ClassName
    bounds  = Get-Bounds $w
  }
}
ConvertTo-Json -InputObject @($out) -Depth 4 -Compress
`

// invokeScript exits 3 when the element is missing and 4 when it exposes no
// pattern for the requested operation.
const invokeScript = uiaPrelude + `
$win = $A::FromHandle([IntPtr][int64]$env:DESKGATE_HANDLE)
$cond = New-Object System.Windows.Automation.PropertyCondition($A::NameProperty, $env:DESKGATE_ELEMENT)
$matches = $win.FindAll([System.Windows.Automation.TreeScope]::Descendants, $cond)
$el = $null
foreach ($m in $matches) {
  $role = $m.Current.ControlType.ProgrammaticName -replace '^ControlType\.', ''
  if (-not $env:DESKGATE_ROLE -or $role -eq $env:DESKGATE_ROLE) { $el = $m; break }
}
if (-not $el) { exit 3 }
$pattern = $null
switch ($env:DESKGATE_OPERATION) {
  'toggle' {
    if ($el.TryGetCurrentPattern([System.Windows.Automation.TogglePattern]::Pattern, [ref]$pattern)) {
      $on = $pattern.Current.ToggleState -eq [System.Windows.Automation.ToggleState]::On
      if ($env:DESKGATE_STATE -eq '' -or ($env:DESKGATE_STATE -eq 'true') -ne $on) { $pattern.Toggle(); Write-Output 'toggled' } else { Write-Output 'already set' }
      exit 0
    }
  }
  'type' {
    if ($el.TryGetCurrentPattern([System.Windows.Automation.ValuePattern]::Pattern, [ref]$pattern)) {
      $pattern.SetValue($env:DESKGATE_TEXT); Write-Output 'value set'; exit 0
    }
  }
  default {
    if ($el.TryGetCurrentPattern([System.Windows.Automation.InvokePattern]::Pattern, [ref]$pattern)) { $pattern.Invoke(); Write-Output 'invoked'; exit 0 }
    if ($el.TryGetCurrentPattern([System.Windows.Automation.SelectionItemPattern]::Pattern, [ref]$pattern)) { $pattern.Select(); Write-Output 'selected'; exit 0 }
    if ($el.TryGetCurrentPattern([System.Windows.Automation.ExpandCollapsePattern]::Pattern, [ref]$pattern)) { $pattern.Expand(); Write-Output 'expanded'; exit 0 }
  }
}
exit 4
`

const controlTreeScript = uiaPrelude + `
$walker = [System.Windows.Automation.TreeWalker]::ControlViewWalker
$max = [int]$env:DESKGATE_DEPTH
function Walk($el, $depth) {
  $c = $el.Current
  $node = [ordered]@{
    name          = $c.Name
    role          = $c.ControlType.ProgrammaticName -replace '^ControlType\.', ''
    automation_id = $c.AutomationId
    bounds        = Get-Bounds $el
  }
  $tp = $null
  if ($el.TryGetCurrentPattern([System.Windows.Automation.TogglePattern]::Pattern, [ref]$tp)) {
    $node.toggled = $tp.Current.ToggleState -eq [System.Windows.Automation.ToggleState]::On
  }
  if ($depth -lt $max) {
    $kids = @()
    $child = $walker.GetFirstChild($el)
    while ($child) { $kids += Walk $child ($depth + 1); $child = $walker.GetNextSibling($child) }
    if ($kids.Count) { $node.children = $kids }
  }
  [pscustomobject]$node
}
$win = $A::FromHandle([IntPtr][int64]$env:DESKGATE_HANDLE)
Walk $win 0 | ConvertTo-Json -Depth 100 -Compress
`

const captureScript = `$ErrorActionPreference = 'Stop'
Add-Type -AssemblyName System.Drawing
$w = [int]$env:DESKGATE_WIDTH; $h = [int]$env:DESKGATE_HEIGHT
$bmp = New-Object System.Drawing.Bitmap($w, $h)
$g = [System.Drawing.Graphics]::FromImage($bmp)
$g.CopyFromScreen([int]$env:DESKGATE_X, [int]$env:DESKGATE_Y, 0, 0, $bmp.Size)
$bmp.Save($env:DESKGATE_OUT, [System.Drawing.Imaging.ImageFormat]::Png)
$g.Dispose(); $bmp.Dispose()
`

const clickScript = `$ErrorActionPreference = 'Stop'
Add-Type -Namespace DeskGate -Name Mouse -MemberDefinition @'
[DllImport("user32.dll")] public static extern bool SetCursorPos(int x, int y);
[DllImport("user32.dll")] public static extern void mouse_event(uint flags, uint dx, uint dy, uint data, System.UIntPtr extra);
'@
[DeskGate.Mouse]::SetCursorPos([int]$env:DESKGATE_X, [int]$env:DESKGATE_Y) | Out-Null
Start-Sleep -Milliseconds 50
[DeskGate.Mouse]::mouse_event(0x0002, 0, 0, 0, [System.UIntPtr]::Zero)
[DeskGate.Mouse]::mouse_event(0x0004, 0, 0, 0, [System.UIntPtr]::Zero)
`

const typeScript = `$ErrorActionPreference = 'Stop'
Add-Type -AssemblyName System.Windows.Forms
[System.Windows.Forms.SendKeys]::SendWait($env:DESKGATE_TEXT)
`
