// Copyright (c) 2025 Erik Kassubek
//
// File: listings.go
// Brief: Formatting for paginated and service-level query endpoints (spec §6.2)
//
// Author: Erik Kassubek
// Created: 2025-07-01
//
// License: BSD-3-Clause

package query

import "causeway/storage"

// TraceList is the payload of `GET /api/traces` (spec §6.2).
type TraceList struct {
	Traces []storage.TraceSummary `json:"traces"`
	Page   int                    `json:"page"`
	PageSize int                  `json:"page_size"`
	Total  int                    `json:"total"`
}

// FormatTraceList builds a paginated trace listing response.
func FormatTraceList(summaries []storage.TraceSummary, page, pageSize, total int) TraceList {
	return TraceList{Traces: summaries, Page: page, PageSize: pageSize, Total: total}
}

// ServiceList is the payload of `GET /api/services`.
type ServiceList struct {
	Services []storage.ServiceSummary `json:"services"`
}

// FormatServiceList builds the service listing response.
func FormatServiceList(services []storage.ServiceSummary) ServiceList {
	return ServiceList{Services: services}
}

// DistributedEdgeList is the payload of `GET /api/distributed/edges`.
type DistributedEdgeList struct {
	Edges []storage.DistributedEdgeSummary `json:"edges"`
}

// FormatDistributedEdgeList builds the distributed edge rollup
// response.
func FormatDistributedEdgeList(edges []storage.DistributedEdgeSummary) DistributedEdgeList {
	return DistributedEdgeList{Edges: edges}
}
