package decision

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mcp-defender/mcp-defender/internal/infra/signature"
)

const policyReloadDebounce = 200 * time.Millisecond

// LoadPolicy reads the signature policy file, falling back to defaults when
// the path is empty or the file does not exist yet.
func LoadPolicy(path string) (signature.Policy, error) {
	v := viper.New()
	defaults := signature.DefaultPolicy()
	v.SetDefault("maxInputChars", defaults.MaxInputChars)
	v.SetDefault("maxFileReadMentions", defaults.MaxFileReadMentions)
	v.SetDefault("maxTraversalDepth", defaults.MaxTraversalDepth)
	v.SetDefault("largeNumericThreshold", defaults.LargeNumericThreshold)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return signature.Policy{}, fmt.Errorf("read policy file: %w", err)
			}
		}
	}

	var policy signature.Policy
	if err := v.Unmarshal(&policy); err != nil {
		return signature.Policy{}, fmt.Errorf("decode policy: %w", err)
	}
	return policy, nil
}

// WatchPolicy reloads the policy file on change and swaps the engine's
// signature set. Reload failures keep the last good policy. Events are
// debounced since editors produce bursts of writes.
func WatchPolicy(ctx context.Context, path string, engine *signature.Engine, logger *zap.Logger) error {
	if path == "" {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("policy_watcher")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("policy watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch policy dir: %w", err)
	}

	go func() {
		defer watcher.Close()
		var timer *time.Timer
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-watcher.Errors:
				if err != nil {
					logger.Warn("policy watcher error", zap.Error(err))
				}
			case event := <-watcher.Events:
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(policyReloadDebounce)
					continue
				}
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(policyReloadDebounce)
			case <-timerChan(timer):
				timer = nil
				policy, err := LoadPolicy(path)
				if err != nil {
					logger.Warn("policy reload failed, keeping previous", zap.Error(err))
					continue
				}
				engine.Update(signature.Defaults(policy))
				logger.Info("policy reloaded",
					zap.Int("maxInputChars", policy.MaxInputChars),
					zap.Int("maxFileReadMentions", policy.MaxFileReadMentions))
			}
		}
	}()
	return nil
}

func timerChan(timer *time.Timer) <-chan time.Time {
	if timer == nil {
		return nil
	}
	return timer.C
}
