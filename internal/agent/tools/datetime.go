package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/webchat-agent/server/internal/agent/model"
	logx "github.com/webchat-agent/server/pkg/logger"
)

func newDateTimeDefinition(cfg model.ToolsConfig) *Definition {
	return &Definition{
		ID:      "get_date_time",
		Name:    "get_date_time",
		Desc:    "Returns the current date and time, including the weekday.",
		Enabled: true,
		Params:  nil,
		Handler: func(ctx context.Context, _ json.RawMessage) (string, error) {
			loc, err := time.LoadLocation(cfg.DateTime.Timezone)
			if err != nil {
				logx.Warn().Err(err).Str("timezone", cfg.DateTime.Timezone).
					Msg("unknown timezone, using local time")
				loc = time.Local
			}
			now := time.Now().In(loc)
			return fmt.Sprintf("Current time: %s", now.Format("Monday, January 2, 2006 15:04:05 MST")), nil
		},
	}
}
