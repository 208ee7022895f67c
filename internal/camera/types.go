package camera

import "fmt"

type FacingMode string

const (
	FacingUser        FacingMode = "user"
	FacingEnvironment FacingMode = "environment"
)

func ParseFacingMode(s string) (FacingMode, error) {
	switch FacingMode(s) {
	case FacingUser:
		return FacingUser, nil
	case FacingEnvironment:
		return FacingEnvironment, nil
	default:
		return "", fmt.Errorf("unknown facing mode %q", s)
	}
}

type Frame struct {
	SessionID string
	Timestamp int64
	Data      []byte
	Width     int
	Height    int
}

// Source describes where frames for a facing mode come from. An empty
// SnapshotURL means the device pushes frames through the ingest endpoint.
type Source struct {
	SnapshotURL string
}
