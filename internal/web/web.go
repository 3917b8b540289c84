package web

import (
	"context"
	"errors"
	"fmt"
	nurl "net/url"
	"os"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	ps "github.com/mitchellh/go-ps"
	"github.com/rs/zerolog/log"
)

var (
	ErrTimedOut      = errors.New("timed out waiting for the login redirect")
	ErrBrowserLaunch = errors.New("unable to launch browser")
)

const completedPage = `<!DOCTYPE html>
<html>
  <body>
	<div id="message">Sign in complete, this window can be closed.</div>
  </body>
</html>`

type WebConfig struct {
	datadir string
	// timeout in seconds
	timeout  int
	headless bool
}

func NewWebConf(datadir string) *WebConfig {
	return &WebConfig{
		datadir:  datadir,
		headless: false,
		timeout:  120,
	}
}

func (wc *WebConfig) WithTimeout(timeoutSeconds int) *WebConfig {
	wc.timeout = timeoutSeconds
	return wc
}

func (wc *WebConfig) WithHeadless() *WebConfig {
	wc.headless = true
	return wc
}

type Web struct {
	conf *WebConfig
}

// New returns an initialised instance of Web struct.
// The browser is only launched once a login is captured.
func New(conf *WebConfig) *Web {
	return &Web{conf: conf}
}

func (web *Web) launch() (*rod.Browser, error) {
	l := launcher.New().
		Headless(web.conf.headless).
		Devtools(false).
		Leakless(true)

	url, err := l.UserDataDir(web.conf.datadir).Launch()
	if err != nil {
		return nil, fmt.Errorf("%s, %w", err, ErrBrowserLaunch)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("%s, %w", err, ErrBrowserLaunch)
	}
	return browser.NoDefaultDevice(), nil
}

// CaptureRedirect opens authURL and waits for the browser to be sent to
// redirectURI. The redirect is intercepted, so nothing needs to listen on
// redirectURI, and the full callback URL is returned.
func (web *Web) CaptureRedirect(ctx context.Context, authURL, redirectURI string) (*nurl.URL, error) {
	browser, err := web.launch()
	if err != nil {
		return nil, err
	}
	defer browser.MustClose()

	router := browser.HijackRequests()
	defer router.MustStop()

	captured := make(chan *nurl.URL, 1)
	router.MustAdd(redirectURI+"*", func(h *rod.Hijack) {
		u := h.Request.URL()
		h.Response.SetHeader("Content-Type", "text/html; charset=utf-8")
		h.Response.SetBody(completedPage)
		select {
		case captured <- u:
		default:
		}
	})

	go router.Run()

	if _, err := browser.Page(proto.TargetCreateTarget{URL: authURL}); err != nil {
		return nil, fmt.Errorf("unable to open login page: %w", err)
	}
	log.Debug().Str("url", authURL).Msg("waiting for login redirect")

	select {
	case u := <-captured:
		return u, nil
	case <-time.After(time.Duration(web.conf.timeout) * time.Second):
		return nil, ErrTimedOut
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (web *Web) ClearCache() error {
	errs := []error{}

	if err := os.RemoveAll(web.conf.datadir); err != nil {
		errs = append(errs, err)
	}
	if err := checkRodProcess(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// checkRodProcess gets a list running process
// kills any hanging rod browser process from any previous improprely closed sessions
func checkRodProcess() error {
	pids := make([]int, 0)
	ps, err := ps.Processes()
	if err != nil {
		return err
	}
	for _, v := range ps {
		if strings.Contains(v.Executable(), "Chromium") {
			pids = append(pids, v.Pid())
		}
	}
	for _, pid := range pids {
		log.Info().Int("pid", pid).Msg("process to be killed as part of clean up")
		if proc, _ := os.FindProcess(pid); proc != nil {
			_ = proc.Kill()
		}
	}
	return nil
}
