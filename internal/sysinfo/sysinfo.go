// Package sysinfo collects facts about the host a command ran on.
// They are attached to reports so an operator can tell which machine's
// cron job failed.
package sysinfo

import (
	"context"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
)

// HostInfo contains the host details attached to a report.
type HostInfo struct {
	// Hostname is the system hostname
	Hostname string `json:"hostname"`

	// OS is the operating system name (linux, darwin)
	OS string `json:"os"`

	// Platform is the distribution name (ubuntu, centos, debian, alpine)
	Platform string `json:"platform"`

	// PlatformVersion is the distribution version (22.04, 9.3, etc.)
	PlatformVersion string `json:"platformVersion"`

	// KernelVersion is the kernel version string
	KernelVersion string `json:"kernelVersion"`

	// Arch is the Go architecture (amd64, arm64)
	Arch string `json:"arch"`
}

// Collect gathers host information. Fields gopsutil cannot read are left
// empty; the hostname falls back to os.Hostname.
func Collect(ctx context.Context) *HostInfo {
	info := &HostInfo{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}

	if hostInfo, err := host.InfoWithContext(ctx); err == nil {
		info.Hostname = hostInfo.Hostname
		info.Platform = hostInfo.Platform
		info.PlatformVersion = hostInfo.PlatformVersion
		info.KernelVersion = hostInfo.KernelVersion
	}

	if info.Hostname == "" {
		if name, err := os.Hostname(); err == nil {
			info.Hostname = name
		}
	}
	return info
}

// ReportData converts the host info into the report's data fields:
// server_name plus an os context in the shape Sentry expects.
func (h *HostInfo) ReportData() map[string]any {
	data := map[string]any{
		"logger": "cron",
	}
	if h.Hostname != "" {
		data["server_name"] = h.Hostname
	}

	osContext := map[string]string{"name": h.OS}
	if h.Platform != "" {
		osContext["name"] = h.Platform
		osContext["version"] = h.PlatformVersion
	}
	if h.KernelVersion != "" {
		osContext["kernel_version"] = h.KernelVersion
	}
	data["contexts"] = map[string]any{
		"os": osContext,
		"device": map[string]string{
			"arch": h.Arch,
		},
	}
	return data
}
