// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Label names shared by the collectors.
const (
	// LabelStream is the stream UUID.
	LabelStream = "stream"
	// LabelDirection is "input" or "output".
	LabelDirection = "direction"
	// LabelKind separates copied from skipped bytes.
	LabelKind = "kind"
	// LabelFlag is a driver status flag name.
	LabelFlag = "flag"
	// LabelComponent is the component that built an error.
	LabelComponent = "component"
	// LabelCategory is an error category.
	LabelCategory = "category"
)

// Values for LabelKind.
const (
	KindCopied  = "copied"
	KindSkipped = "skipped"
)

const (
	// ShutdownTimeout is the timeout for graceful shutdown operations.
	ShutdownTimeout = 5 * time.Second
)
