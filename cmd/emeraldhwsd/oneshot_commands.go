package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerrad567/emerald-hwsd/internal/dispatch"
	"github.com/nerrad567/emerald-hwsd/internal/hws"
)

// defaultBrand is shown when neither the device list nor the status names one.
const defaultBrand = "Emerald"

// deviceSummary is the one-shot view of a device.
type deviceSummary struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Brand              string   `json:"brand"`
	SerialNumber       string   `json:"serial_number"`
	CurrentTemperature *float64 `json:"current_temperature"`
	TargetTemperature  *float64 `json:"target_temperature"`
	IsOn               bool     `json:"is_on"`
	Mode               *int     `json:"mode"`
	IsHeating          bool     `json:"is_heating"`
}

func summarize(id string, info hws.Info, st hws.Status) deviceSummary {
	brand := firstNonEmpty(info.Brand, st.Brand(), defaultBrand)
	serial := firstNonEmpty(info.SerialNumber, st.SerialNumber(), id)

	s := deviceSummary{
		ID:           id,
		Name:         brand + " " + serial,
		Brand:        brand,
		SerialNumber: serial,
		IsOn:         st.IsOn(),
		IsHeating:    st.IsHeating(),
	}
	if v, ok := st.CurrentTemperature(); ok {
		s.CurrentTemperature = &v
	}
	if v, ok := st.TargetTemperature(); ok {
		s.TargetTemperature = &v
	}
	if v, ok := st.Mode(); ok {
		s.Mode = &v
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func fetchSummary(ctx context.Context, client hws.Client, id string) (deviceSummary, error) {
	info, err := client.Info(ctx, id)
	if err != nil {
		return deviceSummary{}, fmt.Errorf("device info: %w", err)
	}
	st, err := client.FullStatus(ctx, id)
	if err != nil {
		return deviceSummary{}, fmt.Errorf("device status: %w", err)
	}
	return summarize(id, info, st), nil
}

// withClient authenticates once, runs fn and prints its result. Failures are
// printed as {"error": "..."} on stderr with exit status 1.
func (c *commandContext) withClient(cmd *cobra.Command, fn func(ctx context.Context, client hws.Client) (any, error)) error {
	fail := func(err error) error {
		writeJSONError(cmd.ErrOrStderr(), err)
		return &exitError{code: 1, err: err, reported: true}
	}

	cfg, err := c.ensureConfig()
	if err != nil {
		return fail(fmt.Errorf("loading config: %w", err))
	}
	if err := cfg.Validate(); err != nil {
		return fail(err)
	}

	log := c.logger(cfg)
	client, err := c.connector(cfg, log).Connect(cmd.Context())
	if err != nil {
		return fail(fmt.Errorf("authentication failed: %w", err))
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			log.Debug("closing client", "error", closeErr)
		}
	}()

	result, err := fn(cmd.Context(), client)
	if err != nil {
		return fail(err)
	}
	return writeJSON(cmd, result)
}

func newDiscoverCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "List every hot water system on the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(c context.Context, client hws.Client) (any, error) {
				ids, err := client.ListDevices(c)
				if err != nil {
					return nil, fmt.Errorf("listing devices: %w", err)
				}

				devices := make([]deviceSummary, 0, len(ids))
				for _, id := range ids {
					s, err := fetchSummary(c, client, id)
					if err != nil {
						return nil, err
					}
					devices = append(devices, s)
				}
				return map[string]any{"devices": devices}, nil
			})
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show one hot water system",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(c context.Context, client hws.Client) (any, error) {
				return fetchSummary(c, client, id)
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Device id")
	_ = cmd.MarkFlagRequired("id") //nolint:errcheck // flag defined above
	return cmd
}

// setActions lists the accepted --action values.
const setActions = "on|off|normal|boost|eco"

func newSetCommand(ctx *commandContext) *cobra.Command {
	var id, action string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Switch a hot water system on or off, or change its mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			act, err := parseAction(action)
			if err != nil {
				writeJSONError(cmd.ErrOrStderr(), err)
				return &exitError{code: 1, err: err, reported: true}
			}
			return ctx.withClient(cmd, func(c context.Context, client hws.Client) (any, error) {
				if err := act(c, client, id); err != nil {
					return nil, err
				}
				return fetchSummary(c, client, id)
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Device id")
	cmd.Flags().StringVar(&action, "action", "", "Action: "+setActions)
	_ = cmd.MarkFlagRequired("id")     //nolint:errcheck // flag defined above
	_ = cmd.MarkFlagRequired("action") //nolint:errcheck // flag defined above
	return cmd
}

// errUnknownAction is returned for an --action outside setActions.
var errUnknownAction = errors.New("unknown action")

// deviceAction is one `set --action` operation.
type deviceAction func(ctx context.Context, client hws.Client, id string) error

func parseAction(name string) (deviceAction, error) {
	switch strings.ToLower(name) {
	case "on":
		return func(ctx context.Context, client hws.Client, id string) error {
			return client.TurnOn(ctx, id)
		}, nil
	case "off":
		return func(ctx context.Context, client hws.Client, id string) error {
			return client.TurnOff(ctx, id)
		}, nil
	}

	mode, ok := dispatch.ModeByName(name)
	if !ok {
		return nil, fmt.Errorf("%w %q (want %s)", errUnknownAction, name, setActions)
	}
	return func(ctx context.Context, client hws.Client, id string) error {
		return dispatch.SetMode(ctx, client, id, mode)
	}, nil
}
