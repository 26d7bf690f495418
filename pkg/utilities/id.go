package utilities

import (
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

// NewRequestID generates a KSUID string used to correlate log lines
// belonging to one HTTP request. Also used as JWT jti values.
func NewRequestID() string {
	return ksuid.New().String()
}

// NewReportSerial generates a snowflake serial for system reports using a
// node ID from the SNOWFLAKE_NODE env var. If node setup fails it falls
// back to a KSUID string so a unique serial is always returned.
func NewReportSerial() string {
	nodeEnv := os.Getenv("SNOWFLAKE_NODE")
	nodeID := int64(1)
	if nodeEnv != "" {
		if parsed, err := strconv.ParseInt(nodeEnv, 10, 64); err == nil {
			nodeID = parsed
		}
	}
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return NewRequestID()
	}
	return node.Generate().String()
}
