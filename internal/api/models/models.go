package models

import (
	"github.com/smazurov/fbmirror/internal/device"
	"github.com/smazurov/fbmirror/internal/version"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionResponse struct {
	Body version.Info
}

// Session models
type SessionStatusResponse struct {
	Body device.Status
}

type ActionData struct {
	Status  string `json:"status" example:"ok" doc:"Outcome of the action"`
	Message string `json:"message,omitempty" example:"tap sent" doc:"Human readable detail"`
}

type ActionResponse struct {
	Body ActionData
}

// Input models
type PointRequest struct {
	Body device.Point
}

type SwipeData struct {
	From device.Point `json:"from" doc:"Press position"`
	To   device.Point `json:"to" doc:"Release position"`
}

type SwipeRequest struct {
	Body SwipeData
}

type KeyData struct {
	Code int `json:"code" minimum:"0" example:"4" doc:"Android key code (4 = BACK, 3 = HOME)"`
}

type KeyRequest struct {
	Body KeyData
}

// Snapshot models
type SnapshotRequest struct {
	Format  string `query:"format" enum:"png,jpeg,jpg" default:"png" doc:"Image encoding"`
	Width   int    `query:"width" minimum:"0" doc:"Maximum output width, 0 keeps the native size"`
	Quality int    `query:"quality" minimum:"0" maximum:"100" doc:"JPEG quality, 0 selects the default"`
}

type SnapshotResponse struct {
	ContentType  string `header:"Content-Type"`
	CacheControl string `header:"Cache-Control"`
	Body         []byte
}

// Log models
type LogsRequest struct {
	Since uint64 `query:"since" doc:"Only return entries with a sequence number above this value"`
	Level string `query:"level" enum:"debug,info,warn,error" doc:"Minimum level to return"`
}

type LogLine struct {
	Seq       uint64         `json:"seq" example:"42" doc:"Sequence number"`
	Timestamp string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level     string         `json:"level" example:"info" doc:"Log level"`
	Module    string         `json:"module" example:"session" doc:"Source module"`
	Message   string         `json:"message" doc:"Log message"`
	Attrs     map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
	Line      string         `json:"line" doc:"Pre-formatted display line"`
}

type LogsData struct {
	Entries []LogLine `json:"entries" doc:"Buffered log entries, oldest first"`
	Count   int       `json:"count" example:"10" doc:"Number of entries returned"`
}

type LogsResponse struct {
	Body LogsData
}
