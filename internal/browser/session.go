package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xenwave/formpilot/api/schemas"
	"github.com/xenwave/formpilot/internal/config"
	"github.com/xenwave/formpilot/internal/extract"
)

// Session is one DevTools connection to a tab of the user's running Chrome.
// It is not safe for concurrent use; the workflow drives it sequentially.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc

	allocCancel context.CancelFunc

	netCfg config.NetworkConfig
	logger *zap.Logger

	mu       sync.Mutex
	isClosed bool
}

// NewSession attaches to the browser exposed at the configured DevTools URL
// and opens a fresh tab.
func NewSession(ctx context.Context, browserCfg config.BrowserConfig, netCfg config.NetworkConfig, logger *zap.Logger) (*Session, error) {
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, browserCfg.DevToolsURL)

	opts := []chromedp.ContextOption{}
	if browserCfg.Debug {
		opts = append(opts, chromedp.WithDebugf(logger.Sugar().Debugf))
	}
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, opts...)

	s := &Session{
		ctx:         tabCtx,
		cancel:      tabCancel,
		allocCancel: allocCancel,
		netCfg:      netCfg,
		logger:      logger.Named("browser"),
	}

	actions := []chromedp.Action{network.Enable()}
	if browserCfg.DisableCache {
		actions = append(actions, network.SetCacheDisabled(true))
	}
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		s.Close()
		return nil, fmt.Errorf("attach to browser at %s: %w", browserCfg.DevToolsURL, err)
	}

	s.logger.Info("Attached to browser", zap.String("devtools_url", browserCfg.DevToolsURL))
	return s, nil
}

// run executes chromedp actions under the given timeout, classifying
// deadline hits as transient.
func (s *Session) run(timeout time.Duration, actions ...chromedp.Action) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return fmt.Errorf("session is closed")
	}
	s.mu.Unlock()

	ctx := s.ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, timeout)
		defer cancel()
	}
	err := chromedp.Run(ctx, actions...)
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: browser action timed out after %s", schemas.ErrTransient, timeout)
	}
	return err
}

// Navigate loads a URL and waits for the document plus a settle period for
// client-side rendering.
func (s *Session) Navigate(url string) error {
	s.logger.Debug("Navigating", zap.String("url", url))
	err := s.run(s.netCfg.NavigationTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if s.netCfg.PostLoadWait > 0 {
				select {
				case <-time.After(s.netCfg.PostLoadWait):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// CurrentURL returns the tab's location.
func (s *Session) CurrentURL() (string, error) {
	var url string
	if err := s.run(s.netCfg.ActionTimeout, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return url, nil
}

// OuterHTML returns a static snapshot of the document for platform detection.
func (s *Session) OuterHTML() (string, error) {
	var html string
	if err := s.run(s.netCfg.ActionTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("snapshot document: %w", err)
	}
	return html, nil
}

// CollectControls harvests every form control in the page, including
// same-origin iframes.
func (s *Session) CollectControls() ([]extract.RawControl, error) {
	var controls []extract.RawControl
	if err := s.run(s.netCfg.ActionTimeout, chromedp.Evaluate(extract.HarvestScript, &controls)); err != nil {
		return nil, fmt.Errorf("harvest controls: %w", err)
	}
	return controls, nil
}

// HasBlockingChallenge probes for CAPTCHA widgets and login walls.
func (s *Session) HasBlockingChallenge() (bool, error) {
	var blocked bool
	if err := s.run(s.netCfg.ActionTimeout, chromedp.Evaluate(extract.ChallengeProbeScript, &blocked)); err != nil {
		return false, fmt.Errorf("challenge probe: %w", err)
	}
	return blocked, nil
}

// SetValue writes a text value into a control and fires the input and
// change events frameworks listen for. Structural failures (selector no
// longer resolving) come back wrapped in schemas.ErrStructural.
func (s *Session) SetValue(field schemas.FieldCandidate, value string) error {
	script := fillScript(field, value)
	var ok bool
	if err := s.run(s.netCfg.ActionTimeout, chromedp.Evaluate(script, &ok)); err != nil {
		return fmt.Errorf("set value on %s: %w", field.Selector, err)
	}
	if !ok {
		return fmt.Errorf("%w: selector %s did not resolve to a fillable control", schemas.ErrStructural, field.Selector)
	}
	return nil
}

// SetFiles attaches local files to a file input.
func (s *Session) SetFiles(field schemas.FieldCandidate, paths []string) error {
	if err := s.run(s.netCfg.ActionTimeout,
		chromedp.SetUploadFiles(field.Selector, paths, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("%w: upload to %s: %v", schemas.ErrStructural, field.Selector, err)
	}
	return nil
}

// ClickButton finds and clicks a named button role. It returns false when
// no matching button exists, which is not an error.
func (s *Session) ClickButton(role string) (bool, error) {
	var clicked bool
	if err := s.run(s.netCfg.ActionTimeout, chromedp.Evaluate(scriptForButton(role), &clicked)); err != nil {
		return false, fmt.Errorf("click %s button: %w", role, err)
	}
	if clicked {
		s.logger.Debug("Clicked button", zap.String("role", role))
	}
	return clicked, nil
}

// WaitURLChange polls the location until it differs from prev or the
// timeout passes. It reports whether a change was observed.
func (s *Session) WaitURLChange(prev string, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		current, err := s.CurrentURL()
		if err != nil {
			return false, err
		}
		if current != prev {
			s.logger.Debug("URL changed", zap.String("from", prev), zap.String("to", current))
			return true, nil
		}
		select {
		case <-time.After(500 * time.Millisecond):
		case <-s.ctx.Done():
			return false, s.ctx.Err()
		}
	}
	return false, nil
}

// Screenshot captures the viewport as PNG bytes.
func (s *Session) Screenshot() ([]byte, error) {
	var buf []byte
	if err := s.run(s.netCfg.ActionTimeout, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return buf, nil
}

// Close tears down the tab and the allocator. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed {
		return
	}
	s.isClosed = true
	s.cancel()
	s.allocCancel()
	s.logger.Debug("Session closed")
}

// fillScript writes a value into the candidate's control inside whichever
// document hosts it, using the native value setter so framework-bound
// inputs observe the change.
func fillScript(field schemas.FieldCandidate, value string) string {
	sel, _ := json.MarshalToString(field.Selector)
	frame, _ := json.MarshalToString(field.FrameID)
	val, _ := json.MarshalToString(value)
	kind, _ := json.MarshalToString(string(field.Control))
	return `(() => {
  const sel = ` + sel + `, frameSel = ` + frame + `, value = ` + val + `, kind = ` + kind + `;

  let doc = document;
  if (frameSel) {
    const frame = document.querySelector(frameSel);
    if (!frame || !frame.contentDocument) return false;
    doc = frame.contentDocument;
  }
  const el = doc.querySelector(sel);
  if (!el) return false;

  const fire = (name) => el.dispatchEvent(new Event(name, { bubbles: true }));

  if (kind === 'select') {
    let matched = false;
    for (const opt of el.options) {
      if ((opt.textContent || '').trim() === value || opt.value === value) {
        el.value = opt.value;
        matched = true;
        break;
      }
    }
    if (!matched) return false;
    fire('input'); fire('change');
    return true;
  }

  if (kind === 'radio') {
    const name = el.name;
    const group = name ? doc.querySelectorAll('input[type="radio"][name="' + name + '"]') : [el];
    for (const radio of group) {
      const label = (radio.closest('label') ? radio.closest('label').textContent : radio.value || '').trim();
      if (label === value || radio.value === value) {
        radio.checked = true;
        radio.dispatchEvent(new Event('input', { bubbles: true }));
        radio.dispatchEvent(new Event('change', { bubbles: true }));
        return true;
      }
    }
    return false;
  }

  if (kind === 'checkbox') {
    const want = ['yes', 'true', 'checked', 'on'].includes(value.trim().toLowerCase());
    el.checked = want;
    fire('input'); fire('change');
    return true;
  }

  const proto = el.tagName === 'TEXTAREA' ? window.HTMLTextAreaElement.prototype : window.HTMLInputElement.prototype;
  const setter = Object.getOwnPropertyDescriptor(proto, 'value');
  if (setter && setter.set) {
    setter.set.call(el, value);
  } else {
    el.value = value;
  }
  fire('input'); fire('change'); fire('blur');
  return true;
})()`
}
