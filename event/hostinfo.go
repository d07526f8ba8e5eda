// Copyright (c) 2025 Erik Kassubek
//
// File: hostinfo.go
// Brief: Local host/process stamping for distributed spans
//
// Author: Erik Kassubek
// Created: 2025-07-01
//
// License: BSD-3-Clause

package event

import (
	"os"

	"github.com/shirou/gopsutil/host"
)

// StampLocalHost fills in a DistributedSpan's host/process fields from
// the machine running the storage backend, when the caller left them
// unset. Instrumented services are expected to report their own
// instance/process identity (spec §3); this backfills a sane default
// for spans saved without it rather than leaving the fields blank.
func StampLocalHost(s *DistributedSpan) {
	if s.ProcessID == 0 {
		s.ProcessID = uint32(os.Getpid())
	}
	if s.HostName == "" {
		if info, err := host.Info(); err == nil {
			s.HostName = info.Hostname
		}
	}
	if s.InstanceID == "" {
		s.InstanceID = s.HostName
	}
}
