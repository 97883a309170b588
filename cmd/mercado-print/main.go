package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"mercado-print/internal/bluetooth"
	"mercado-print/internal/config"
	"mercado-print/internal/diagnostics"
	"mercado-print/internal/discovery"
	"mercado-print/internal/escpos"
	"mercado-print/internal/logging"
	"mercado-print/internal/permission"
	"mercado-print/internal/platform"
	"mercado-print/internal/printer"
)

const (
	AppVersion = "0.3.0"
	AppName    = "Mercado Print"

	connectTimeout = 45 * time.Second
	printTimeout   = 30 * time.Second
)

type App struct {
	fyneApp fyne.App
	window  fyne.Window
	cfg     *config.Config
	profile platform.DeviceProfile

	// Pipeline
	bridge    bluetooth.Bridge
	perms     *permission.Negotiator
	engine    *discovery.Engine
	journal   *diagnostics.Journal
	scanner   *discovery.Scanner
	lifecycle *printer.Lifecycle
	store     *printer.DefaultStore
	reporter  *diagnostics.Reporter

	// Widgets that need updating
	statusLabel   *widget.Label
	scanBtn       *widget.Button
	connectBtn    *widget.Button
	printBtn      *widget.Button
	saveBtn       *widget.Button
	deviceSelect  *widget.Select
	showAllCheck  *widget.Check
	autoReconnect *widget.Check

	mu      sync.Mutex
	outcome discovery.Outcome
	listed  []bluetooth.Device
	showAll bool
}

func main() {
	cfg, err := config.LoadConfig(configPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logging.Init(cfg.LogLevel)

	a := app.NewWithID(cfg.AppID)
	w := a.NewWindow(fmt.Sprintf("%s v%s", AppName, AppVersion))
	w.Resize(fyne.NewSize(520, 420))

	mp := &App{
		fyneApp: a,
		window:  w,
		cfg:     cfg,
		profile: resolveProfile(cfg),
	}
	mp.buildPipeline()

	w.SetMainMenu(mp.buildMenu())
	w.SetContent(mp.buildUI())
	w.SetOnClosed(mp.cleanup)

	go mp.watchConnection()
	go mp.startup()
	w.ShowAndRun()
}

func configPath() string {
	if p := os.Getenv("MERCADO_PRINT_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

// resolveProfile probes the platform and applies config overrides.
func resolveProfile(cfg *config.Config) platform.DeviceProfile {
	p := platform.ProbeHost()
	if cfg.UserAgent != "" {
		p = platform.ProbeUserAgent(cfg.UserAgent)
	}
	p = p.WithScanTimeout(cfg.Scan.Timeout())
	if d := cfg.Scan.RetryDelay(); d > 0 {
		p = p.WithRetryDelay(d)
	}
	return p
}

func (a *App) buildPipeline() {
	cfg := a.cfg

	a.bridge = bluetooth.NewBridge(bluetooth.Options{
		DiscoveryWindow: cfg.Scan.DiscoveryWindow(),
		RFCOMMChannel:   cfg.Printer.RFCOMMChannel,
		BaudRate:        cfg.Printer.BaudRate,
		WriteChunk:      cfg.Printer.WriteChunk,
		BytesPerSecond:  cfg.Printer.BytesPerSecond,
		StatusCallback:  a.setStatus,
	})

	a.perms = permission.NewNegotiator(permission.HostBridge{},
		permission.WithBatchSize(cfg.Permissions.BatchSize),
		permission.WithBatchPause(cfg.Permissions.BatchPause()),
	)
	a.engine = discovery.NewEngine(a.perms, a.bridge,
		discovery.WithSettle(cfg.Scan.Settle()),
	)
	a.journal = diagnostics.NewJournal(cfg.Scan.JournalSize, cfg.Scan.SeenTTL())
	retrier := discovery.NewRetrier(a.engine,
		discovery.WithMaxAttempts(cfg.Scan.MaxAttempts, cfg.Scan.SpecialMaxAttempts),
		discovery.WithAttemptHook(a.onAttempt),
	)
	a.scanner = discovery.NewScanner(retrier)

	a.lifecycle = printer.NewLifecycle(a.bridge)
	a.store = printer.NewDefaultStore(a.fyneApp.Preferences())

	a.reporter = diagnostics.NewReporter(a.profile,
		diagnostics.WithRequirer(a.perms),
		diagnostics.WithEngine(a.engine),
		diagnostics.WithJournal(a.journal),
		diagnostics.WithConnection(a.lifecycle),
		diagnostics.WithDefaultPrinter(a.store),
	)
	logging.Default.Infof("%s v%s on %s", AppName, AppVersion, a.profile)
}

func (a *App) onAttempt(n int, res discovery.AttemptResult) {
	a.journal.RecordAttempt(n, res)
	if res.State == discovery.TimedOut || (res.State == discovery.Completed && len(res.Devices) == 0) {
		a.setStatus(fmt.Sprintf("Nothing yet, retrying (attempt %d)...", n+1))
	}
}

func (a *App) buildMenu() *fyne.MainMenu {
	diagItem := fyne.NewMenuItem("Diagnostics", a.showDiagnostics)
	aboutItem := fyne.NewMenuItem("About", a.showAboutDialog)
	return fyne.NewMainMenu(fyne.NewMenu("Help", diagItem, aboutItem))
}

func (a *App) showAboutDialog() {
	content := container.NewVBox(
		widget.NewLabelWithStyle(AppName, fyne.TextAlignCenter, fyne.TextStyle{Bold: true}),
		widget.NewLabel(fmt.Sprintf("Version %s", AppVersion)),
		widget.NewSeparator(),
		widget.NewLabel("Finds and connects Bluetooth receipt printers."),
		widget.NewLabel(a.profile.String()),
	)
	dialog.ShowCustom("About", "Close", content, a.window)
}

func (a *App) cleanup() {
	a.scanner.Cancel()
	if err := a.lifecycle.Disconnect(); err != nil {
		logging.Default.Warnf("disconnect on exit: %v", err)
	}
}

func (a *App) buildUI() fyne.CanvasObject {
	a.statusLabel = widget.NewLabel("Not connected")
	a.statusLabel.Wrapping = fyne.TextWrapWord

	a.deviceSelect = widget.NewSelect([]string{}, func(string) { a.updateButtons() })
	a.deviceSelect.PlaceHolder = "Select a printer"

	a.scanBtn = widget.NewButton("Search", a.scan)
	a.scanBtn.Importance = widget.HighImportance

	a.showAllCheck = widget.NewCheck("Show all devices", func(b bool) {
		a.mu.Lock()
		a.showAll = b
		a.mu.Unlock()
		a.refreshDeviceList()
	})

	a.connectBtn = widget.NewButton("Connect", a.toggleConnection)
	a.printBtn = widget.NewButton("Test print", func() { go a.testPrint(nil) })
	a.saveBtn = widget.NewButton("Set as default", a.saveDefault)

	a.autoReconnect = widget.NewCheck("Reconnect to default printer on start", a.store.SetAutoReconnect)
	a.autoReconnect.SetChecked(a.store.AutoReconnect())

	a.updateButtons()

	deviceRow := container.NewBorder(nil, nil, nil, a.scanBtn, a.deviceSelect)

	return container.NewBorder(
		nil,
		container.NewVBox(widget.NewSeparator(), a.statusLabel),
		nil, nil,
		container.NewVBox(
			widget.NewLabelWithStyle("Printer", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
			deviceRow,
			a.showAllCheck,
			widget.NewSeparator(),
			container.NewGridWithColumns(3, a.connectBtn, a.printBtn, a.saveBtn),
			a.autoReconnect,
			widget.NewSeparator(),
			widget.NewButton("Diagnostics", a.showDiagnostics),
		),
	)
}

func (a *App) setStatus(s string) {
	if a.statusLabel != nil {
		a.statusLabel.SetText(s)
	}
}

// startup checks permissions once, lists the saved default printer and
// reconnects to it when the user asked for that.
func (a *App) startup() {
	ctx := context.Background()

	res := a.perms.Negotiate(ctx, a.profile)
	a.journal.RecordPermissions(res)
	if !res.Granted {
		a.setStatus(discovery.UserMessage(res.Err()))
	}

	if d, ok, err := a.store.Get(); err != nil {
		logging.Default.Warnf("default printer: %v", err)
	} else if ok {
		a.mu.Lock()
		a.outcome = discovery.Outcome{Devices: []bluetooth.Device{d}, Printers: []bluetooth.Device{d}}
		a.mu.Unlock()
		a.refreshDeviceList()
		a.deviceSelect.SetSelectedIndex(0)
	}

	connected, err := printer.AutoReconnect(ctx, a.lifecycle, a.store)
	switch {
	case err != nil:
		logging.Default.Warnf("auto-reconnect: %v", err)
		a.fyneApp.SendNotification(fyne.NewNotification(AppName, "Could not reconnect to the default printer"))
		a.setStatus(fmt.Sprintf("Auto-reconnect failed: %v", err))
	case connected:
		a.setStatus(fmt.Sprintf("Connected to %s", a.lifecycle.Address()))
	}
}

func (a *App) scan() {
	if a.scanner.Busy() {
		a.scanner.Cancel()
		return
	}

	a.scanBtn.SetText("Cancel")
	a.setStatus("Searching for printers...")

	go func() {
		out, err := a.scanner.Scan(context.Background(), a.profile)
		a.scanBtn.SetText("Search")

		a.mu.Lock()
		if err == nil || errors.Is(err, discovery.ErrNoDevicesFound) {
			a.outcome = out
		}
		a.mu.Unlock()
		a.refreshDeviceList()

		switch {
		case err == nil:
			a.setStatus(fmt.Sprintf("Found %d printer(s)", len(out.Printers)))
		case errors.Is(err, discovery.ErrScanCancelled):
			a.setStatus(discovery.UserMessage(err))
		default:
			a.showScanError(err)
		}
	}()
}

func (a *App) showScanError(err error) {
	a.setStatus(discovery.UserMessage(err))

	msg := widget.NewLabel(discovery.Describe(err))
	msg.Wrapping = fyne.TextWrapWord
	if !discovery.OfferRetry(err) {
		dialog.ShowCustom("Printer search", "Close", msg, a.window)
		return
	}
	d := dialog.NewCustomConfirm("Printer search", "Retry", "Close", msg, func(retry bool) {
		if retry {
			a.scan()
		}
	}, a.window)
	d.Resize(fyne.NewSize(400, 220))
	d.Show()
}

// refreshDeviceList rebuilds the selector from the last scan outcome.
func (a *App) refreshDeviceList() {
	a.mu.Lock()
	list := a.outcome.Printers
	if a.showAll {
		list = append([]bluetooth.Device(nil), a.outcome.Devices...)
		discovery.SortDevices(list)
	}
	a.listed = list
	a.mu.Unlock()

	options := make([]string, len(list))
	for i, d := range list {
		options[i] = fmt.Sprintf("%s (%s)", d.DisplayName(), d.Address)
	}
	a.deviceSelect.Options = options
	a.deviceSelect.ClearSelected()
	if len(options) == 1 {
		a.deviceSelect.SetSelectedIndex(0)
	}
	a.deviceSelect.Refresh()
	a.updateButtons()
}

func (a *App) selectedDevice() (bluetooth.Device, bool) {
	i := a.deviceSelect.SelectedIndex()
	a.mu.Lock()
	defer a.mu.Unlock()
	if i < 0 || i >= len(a.listed) {
		return bluetooth.Device{}, false
	}
	return a.listed[i], true
}

func (a *App) updateButtons() {
	if a.connectBtn == nil {
		return
	}
	_, selected := a.selectedDevice()
	connected := a.lifecycle.Connected()

	if connected {
		a.connectBtn.SetText("Disconnect")
		a.connectBtn.Enable()
		a.printBtn.Enable()
	} else {
		a.connectBtn.SetText("Connect")
		a.printBtn.Disable()
		if selected {
			a.connectBtn.Enable()
		} else {
			a.connectBtn.Disable()
		}
	}
	if connected || selected {
		a.saveBtn.Enable()
	} else {
		a.saveBtn.Disable()
	}
}

// watchConnection keeps the buttons in step with the lifecycle.
func (a *App) watchConnection() {
	status, stop := a.lifecycle.Status().Subscribe()
	defer stop()
	for range status {
		a.updateButtons()
	}
}

func (a *App) toggleConnection() {
	if a.lifecycle.Connected() {
		go func() {
			if err := a.lifecycle.Disconnect(); err != nil {
				dialog.ShowError(err, a.window)
			}
			a.setStatus("Disconnected")
		}()
		return
	}

	device, ok := a.selectedDevice()
	if !ok {
		dialog.ShowError(errors.New("no printer selected"), a.window)
		return
	}

	a.connectBtn.Disable()
	a.deviceSelect.Disable()

	go func() {
		defer a.deviceSelect.Enable()
		a.setStatus(fmt.Sprintf("Connecting to %s...", device.DisplayName()))

		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		if err := a.lifecycle.Connect(ctx, device.Address); err != nil {
			a.setStatus(fmt.Sprintf("Connection failed: %v", err))
			a.updateButtons()
			dialog.ShowError(err, a.window)
			return
		}

		a.setStatus(fmt.Sprintf("Connected to %s", device.DisplayName()))
		a.offerTestPrint(device)
	}()
}

// offerTestPrint prints a test receipt after a new connection and lets the
// user keep the printer as default once it came out right.
func (a *App) offerTestPrint(device bluetooth.Device) {
	if d, ok, _ := a.store.Get(); ok && d.Address == device.Address {
		return
	}
	dialog.ShowConfirm("Printer connected",
		fmt.Sprintf("Print a test receipt on %s?", device.DisplayName()),
		func(ok bool) {
			if ok {
				go a.testPrint(&device)
			}
		}, a.window)
}

func (a *App) testPrint(confirm *bluetooth.Device) {
	device := bluetooth.Device{Address: a.lifecycle.Address()}
	if d, ok := a.selectedDevice(); ok && d.Address == device.Address {
		device = d
	}

	data, err := escpos.TestReceipt(escpos.ReceiptInfo{
		Name:      device.Name,
		Address:   device.Address,
		PaperDots: a.cfg.Printer.PaperDots,
	})
	if err != nil {
		dialog.ShowError(err, a.window)
		return
	}

	a.printBtn.Disable()
	defer a.updateButtons()
	a.setStatus("Printing...")

	ctx, cancel := context.WithTimeout(context.Background(), printTimeout)
	defer cancel()
	if err := a.lifecycle.Print(ctx, data); err != nil {
		a.setStatus(fmt.Sprintf("Print error: %v", err))
		dialog.ShowError(err, a.window)
		return
	}
	a.setStatus("Test receipt sent")

	if confirm != nil {
		dialog.ShowConfirm("Default printer",
			fmt.Sprintf("Did the receipt print correctly? Save %s as the default printer?", confirm.DisplayName()),
			func(ok bool) {
				if ok {
					a.storeDefault(*confirm)
				}
			}, a.window)
	}
}

func (a *App) saveDefault() {
	device, ok := a.selectedDevice()
	if !ok && a.lifecycle.Connected() {
		device, ok = bluetooth.Device{Address: a.lifecycle.Address()}, true
	}
	if !ok {
		return
	}
	a.storeDefault(device)
}

func (a *App) storeDefault(device bluetooth.Device) {
	if err := a.store.Save(device); err != nil {
		dialog.ShowError(err, a.window)
		return
	}
	a.setStatus(fmt.Sprintf("%s saved as default printer", device.DisplayName()))
}

func (a *App) showDiagnostics() {
	rep := a.reporter.Snapshot()

	text := widget.NewLabelWithStyle(rep.Text(), fyne.TextAlignLeading, fyne.TextStyle{Monospace: true})
	scroll := container.NewVScroll(text)
	scroll.SetMinSize(fyne.NewSize(460, 320))

	copyBtn := widget.NewButton("Copy as JSON", func() {
		raw, err := rep.JSON()
		if err != nil {
			dialog.ShowError(err, a.window)
			return
		}
		a.window.Clipboard().SetContent(string(raw))
		a.setStatus("Diagnostics copied to clipboard")
	})

	dialog.ShowCustom("Diagnostics", "Close", container.NewBorder(nil, copyBtn, nil, nil, scroll), a.window)
}
