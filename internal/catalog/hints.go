package catalog

import "mercado-print/internal/platform"

// HonorBatteryHint is shown on Honor devices, whose battery manager kills
// background location and with it Bluetooth discovery.
const HonorBatteryHint = "Honor: Settings > Battery > App launch, set this app to \"Manage manually\" and turn off battery optimisation for it"

var remediation = map[platform.Manufacturer][]string{
	platform.Unknown: {
		"Open Settings > Apps > this app > Permissions and allow Nearby devices and Location",
		"Make sure Bluetooth is switched on, then try again",
	},
	platform.Honor: {
		"Open Settings > Apps > this app > Permissions and allow Location \"All the time\"",
		HonorBatteryHint,
	},
	platform.Huawei: {
		"Open Settings > Apps > this app > Permissions and allow Location \"All the time\"",
		"Huawei: Settings > Battery > App launch, allow auto-launch and run in background for this app",
	},
	platform.Samsung: {
		"Open Settings > Apps > this app > Permissions and allow Nearby devices",
		"Samsung: Settings > Device care > Battery, remove this app from Sleeping apps",
	},
	platform.Xiaomi: {
		"Open Settings > Apps > Manage apps > this app > Permissions and allow Location",
		"Xiaomi: enable Autostart for this app and set Battery saver to \"No restrictions\"",
	},
}

var locationHints = map[platform.Manufacturer]string{
	platform.Unknown: "Turn on Location in quick settings; nearby printers stay hidden while it is off",
	platform.Samsung: "Samsung: turn on Location and Settings > Location > Location services > Bluetooth scanning",
	platform.Xiaomi:  "Xiaomi: turn on Location (GPS) in the status bar before scanning",
	platform.Honor:   "Honor: turn on Location and keep the app on screen while scanning",
	platform.Huawei:  "Huawei: turn on Location and keep the app on screen while scanning",
}
