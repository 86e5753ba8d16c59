package registry

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

func builtinKinds() []NodeKind {
	return []NodeKind{
		{
			Type:        models.NodeTypeInitial,
			Name:        "Initial",
			Description: "Placeholder node every workflow starts with",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"label": map[string]any{"type": "string"},
				},
			},
		},
		{
			Type:        models.NodeTypeManualTrigger,
			Name:        "Manual trigger",
			Description: "Starts the workflow when run by hand",
			Schema:      map[string]any{"type": "object"},
		},
		{
			Type:        models.NodeTypeHTTPRequest,
			Name:        "HTTP request",
			Description: "Sends an HTTP request",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"endpoint": map[string]any{"type": "string"},
					"method": map[string]any{
						"type": "string",
						"enum": []any{"GET", "POST", "PUT", "PATCH", "DELETE"},
					},
					"body": map[string]any{"type": "string"},
				},
			},
			check: checkHTTPRequest,
		},
		{
			Type:        models.NodeTypeScheduleTrigger,
			Name:        "Schedule trigger",
			Description: "Starts the workflow on a cron schedule",
			Schema: map[string]any{
				"type":     "object",
				"required": []any{"cron"},
				"properties": map[string]any{
					"cron":     map[string]any{"type": "string", "minLength": 1},
					"timezone": map[string]any{"type": "string"},
				},
			},
			check: checkSchedule,
		},
	}
}

func checkHTTPRequest(data models.NodeData) error {
	request, ok := data.(models.HTTPRequestData)
	if !ok {
		return errors.New("unexpected payload")
	}

	if request.Endpoint == "" {
		return nil
	}

	endpoint, err := url.ParseRequestURI(request.Endpoint)
	if err != nil || endpoint.Scheme == "" || endpoint.Host == "" {
		return fmt.Errorf("endpoint %q is not an absolute URL", request.Endpoint)
	}

	return nil
}

func checkSchedule(data models.NodeData) error {
	schedule, ok := data.(models.ScheduleTriggerData)
	if !ok {
		return errors.New("unexpected payload")
	}

	_, err := cronParser.Parse(schedule.Cron)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", schedule.Cron, err)
	}

	if schedule.Timezone != "" {
		_, err = time.LoadLocation(schedule.Timezone)
		if err != nil {
			return fmt.Errorf("invalid timezone %q: %w", schedule.Timezone, err)
		}
	}

	return nil
}
