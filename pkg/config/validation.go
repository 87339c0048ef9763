package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration for invalid or inconsistent values.
// Struct tags drive field-level validation; cross-field rules that tags
// cannot express are checked explicitly afterwards.
func Validate(cfg *Config) error {
	validate := validator.New()

	if err := validate.Struct(cfg); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range errs {
				return fmt.Errorf("invalid value for %s: failed %q constraint", fe.Namespace(), fe.Tag())
			}
		}
		return err
	}

	// A turn clock longer than the stall clock would make the stall
	// watchdog fire before the turn expires.
	if cfg.Game.PlayTime > cfg.Game.PlayStateTime {
		return fmt.Errorf("game.play_time (%s) must not exceed game.play_state_time (%s)",
			cfg.Game.PlayTime, cfg.Game.PlayStateTime)
	}

	// An inactive client must outlive the no-response window, otherwise
	// it would be removed before ever being marked inactive.
	if cfg.Game.ClientTimeout <= cfg.Game.NoResponseTimeout {
		return fmt.Errorf("game.client_timeout (%s) must exceed game.noresponse_timeout (%s)",
			cfg.Game.ClientTimeout, cfg.Game.NoResponseTimeout)
	}

	return nil
}
