package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
)

const NotePlatform = "note"

const (
	noteHomeURL   = "https://note.com"
	noteLoginURL  = "https://note.com/login"
	noteDraftsURL = "https://note.com/notes?status=draft"
)

// The compose surface moved across note.com UI revisions; these are
// probed in order until an editor shows up.
var noteEditorURLs = []string{
	"https://note.com/notes/new",
	"https://note.com/new",
	"https://note.com/creation/note",
}

var noteTitleSelectors = []string{
	`textarea[placeholder*="タイトル"]`,
	`input[placeholder*="タイトル"]`,
	`textarea[name="title"]`,
	`input[name="title"]`,
}

const noteEditorSelector = `[contenteditable="true"], div[role="textbox"]`

var noteBannerSelectors = []string{
	`//button[contains(., "同意")]`,
	`//button[contains(., "許可")]`,
	`//button[contains(., "OK")]`,
	`//button[contains(., "Accept")]`,
}

var noteSaveDraftSelectors = []string{
	`//button[contains(., "下書き保存")]`,
	`//button[contains(., "下書き")]`,
	`//button[contains(., "保存")]`,
}

// noteSurface drives note.com through a dedicated Chrome context.
type noteSurface struct {
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	logger      *slog.Logger
	stateDir    string

	navTimeout time.Duration
	opTimeout  time.Duration
}

// NewNoteSurface launches a browser context for note.com. The caller
// owns the surface and must Close it.
func NewNoteSurface(opts Options) (Surface, error) {
	execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.WindowSize(1280, 900),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), execOpts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &noteSurface{
		allocCancel: allocCancel,
		ctx:         browserCtx,
		cancel:      cancel,
		logger:      logger,
		stateDir:    opts.StateDir,
		navTimeout:  60 * time.Second,
		opTimeout:   15 * time.Second,
	}

	// Start the browser eagerly so launch failures surface here, not
	// in the middle of a submission.
	if err := s.run(s.navTimeout, chromedp.Navigate(noteHomeURL)); err != nil {
		cancel()
		allocCancel()
		return nil, E(KindNetwork, "note.open", err)
	}
	s.acceptBanners()
	return s, nil
}

func (s *noteSurface) run(timeout time.Duration, actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	return chromedp.Run(ctx, actions...)
}

// acceptBanners dismisses consent dialogs that otherwise swallow the
// first click on the page. Best effort, failures are ignored.
func (s *noteSurface) acceptBanners() {
	for _, sel := range noteBannerSelectors {
		_ = s.run(2*time.Second, chromedp.Click(sel, chromedp.BySearch))
	}
}

func (s *noteSurface) location() (string, error) {
	var loc string
	err := s.run(s.opTimeout, chromedp.Location(&loc))
	return loc, err
}

func (s *noteSurface) Login(ctx context.Context, creds Credentials) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if creds.Username == "" || creds.Password == "" {
		return Errorf(KindAuth, "note.login", "missing credentials")
	}
	err := s.run(s.navTimeout,
		chromedp.Navigate(noteLoginURL),
		chromedp.WaitVisible(`input#email, input[name="login"]`, chromedp.ByQuery),
		chromedp.SendKeys(`input#email, input[name="login"]`, creds.Username, chromedp.ByQuery),
		chromedp.SendKeys(`input#password, input[type="password"]`, creds.Password, chromedp.ByQuery),
		chromedp.Click(`//button[contains(., "ログイン")]`, chromedp.BySearch),
		chromedp.Sleep(2*time.Second),
	)
	if err != nil {
		return E(KindUI, "note.login", err)
	}
	ok, err := s.LoggedIn(ctx)
	if err != nil {
		return err
	}
	if !ok {
		s.DumpDebug(ctx, "login_rejected")
		return Errorf(KindAuth, "note.login", "platform rejected credentials or raised a challenge")
	}
	return nil
}

func (s *noteSurface) LoggedIn(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := s.run(s.navTimeout, chromedp.Navigate(noteHomeURL)); err != nil {
		return false, E(KindNetwork, "note.logged_in", err)
	}
	s.acceptBanners()
	loc, err := s.location()
	if err != nil {
		return false, E(KindUI, "note.logged_in", err)
	}
	if strings.Contains(loc, "/login") || strings.Contains(loc, "/signin") {
		return false, nil
	}
	// The account menu only renders for authenticated visitors.
	var present bool
	err = s.run(s.opTimeout, chromedp.Evaluate(
		`!!document.querySelector('a[href*="/sitesettings"], button[aria-label*="アカウント"], a[href*="/logout"]')`,
		&present,
	))
	if err != nil {
		return false, E(KindUI, "note.logged_in", err)
	}
	return present, nil
}

func (s *noteSurface) Cookies(ctx context.Context) ([]Cookie, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []Cookie
	err := s.run(s.opTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range cookies {
			out = append(out, Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Expires:  time.Unix(int64(c.Expires), 0),
				Secure:   c.Secure,
				HTTPOnly: c.HTTPOnly,
			})
		}
		return nil
	}))
	if err != nil {
		return nil, E(KindUI, "note.cookies", err)
	}
	return out, nil
}

func (s *noteSurface) SetCookies(ctx context.Context, cookies []Cookie) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		expires := cdp.TimeSinceEpoch(c.Expires)
		params = append(params, &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			Expires:  &expires,
		})
	}
	err := s.run(s.opTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		return storage.SetCookies(params).Do(ctx)
	}))
	if err != nil {
		return E(KindUI, "note.set_cookies", err)
	}
	return nil
}

// OpenEditor walks the known compose URLs until an editor becomes
// visible, then falls back to clicking creation links from the home
// page, mirroring how the surface is reached by hand.
func (s *noteSurface) OpenEditor(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, url := range noteEditorURLs {
		if err := s.run(s.navTimeout, chromedp.Navigate(url)); err != nil {
			continue
		}
		s.acceptBanners()
		if s.editorVisible() {
			return nil
		}
		if loc, err := s.location(); err == nil && strings.Contains(loc, "/login") {
			return E(KindUI, "note.open_editor", ErrLoginRedirect)
		}
	}
	// Creation links from the home page.
	if err := s.run(s.navTimeout, chromedp.Navigate(noteHomeURL)); err == nil {
		s.acceptBanners()
		for _, sel := range []string{`a[href*="/notes/new"]`, `a[href*="/new"]`, `a[href="/creation"]`} {
			if err := s.run(5*time.Second, chromedp.Click(sel, chromedp.ByQuery)); err != nil {
				continue
			}
			if s.editorVisible() {
				return nil
			}
		}
	}
	s.DumpDebug(ctx, "cant_open_editor")
	return Errorf(KindUI, "note.open_editor", "composition surface not reachable")
}

func (s *noteSurface) editorVisible() bool {
	err := s.run(8*time.Second, chromedp.WaitVisible(noteEditorSelector, chromedp.ByQuery))
	return err == nil
}

func (s *noteSurface) SetTitle(ctx context.Context, title string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, sel := range noteTitleSelectors {
		err := s.run(4*time.Second,
			chromedp.WaitVisible(sel, chromedp.ByQuery),
			chromedp.Click(sel, chromedp.ByQuery),
			chromedp.SendKeys(sel, title, chromedp.ByQuery),
		)
		if err == nil {
			return nil
		}
	}
	// Last resort: prepend an h1 into the body editor.
	if err := s.evalOnEditor(fmt.Sprintf(
		`(ed) => { const h = document.createElement('h1'); h.textContent = %s; ed.prepend(h); }`,
		jsString(title))); err == nil {
		return nil
	}
	s.DumpDebug(ctx, "title_fail")
	return Errorf(KindUI, "note.set_title", "no title field accepted input")
}

func (s *noteSurface) AppendHeading(ctx context.Context, level int, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// The editor only styles h2/h3; deeper levels keep structure as h3.
	tag := "h2"
	if level >= 3 {
		tag = "h3"
	}
	return s.appendElement(ctx, tag, text, "note.append_heading")
}

func (s *noteSurface) AppendParagraph(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.appendElement(ctx, "p", text, "note.append_paragraph")
}

// AppendMediaStub inserts a non-blocking placeholder paragraph carrying
// the media reference. Uploads are not driven in headless automation;
// the stub keeps the slot visible for a human editing pass.
func (s *noteSurface) AppendMediaStub(ctx context.Context, ref, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text := fmt.Sprintf("[media: %s]", ref)
	if caption != "" {
		text = fmt.Sprintf("[media: %s — %s]", ref, caption)
	}
	return s.appendElement(ctx, "p", text, "note.append_media")
}

func (s *noteSurface) appendElement(ctx context.Context, tag, text, op string) error {
	js := fmt.Sprintf(
		`(ed) => { const el = document.createElement(%s); el.textContent = %s; ed.appendChild(el); }`,
		jsString(tag), jsString(text))
	if err := s.evalOnEditor(js); err != nil {
		s.DumpDebug(ctx, "input_fail")
		return E(KindUI, op, err)
	}
	return nil
}

// evalOnEditor runs fn against the body editor element, reaching into
// a same-origin iframe when the editor is hosted in one.
func (s *noteSurface) evalOnEditor(fn string) error {
	js := fmt.Sprintf(`(() => {
		const pick = () => document.querySelector('[contenteditable="true"], div[role="textbox"]')
			|| (document.querySelector('iframe') && document.querySelector('iframe').contentDocument
				&& document.querySelector('iframe').contentDocument.querySelector('[contenteditable="true"], div[role="textbox"]'));
		const ed = pick();
		if (!ed) { return false; }
		ed.focus();
		(%s)(ed);
		return true;
	})()`, fn)
	var ok bool
	if err := s.run(s.opTimeout, chromedp.Evaluate(js, &ok)); err != nil {
		return err
	}
	if !ok {
		return errors.New("editor element not found")
	}
	return nil
}

func (s *noteSurface) SaveDraft(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, sel := range noteSaveDraftSelectors {
		err := s.run(s.opTimeout,
			chromedp.Click(sel, chromedp.BySearch),
			chromedp.Sleep(1*time.Second),
		)
		if err == nil {
			return nil
		}
	}
	s.DumpDebug(ctx, "save_fail")
	return Errorf(KindNetwork, "note.save_draft", "draft-save control did not respond")
}

func (s *noteSurface) ListDrafts(ctx context.Context) ([]DraftEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var html string
	err := s.run(s.navTimeout,
		chromedp.Navigate(noteDraftsURL),
		chromedp.Sleep(1*time.Second),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, E(KindNetwork, "note.list_drafts", err)
	}
	if loc, lerr := s.location(); lerr == nil && strings.Contains(loc, "/login") {
		return nil, E(KindUI, "note.list_drafts", ErrLoginRedirect)
	}
	return parseNoteDrafts(html)
}

// parseNoteDrafts extracts draft rows from the listing HTML. The
// listing markup is not a contract; this matches anchor + timestamp
// pairs and is the documented verification heuristic.
func parseNoteDrafts(html string) ([]DraftEntry, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, E(KindUI, "note.parse_drafts", err)
	}
	var entries []DraftEntry
	doc.Find(`a[href*="/n/"], a[href*="/notes/"]`).Each(func(_ int, sel *goquery.Selection) {
		title := strings.TrimSpace(sel.Text())
		if title == "" {
			return
		}
		href, _ := sel.Attr("href")
		href = strings.TrimRight(href, "/")
		entry := DraftEntry{
			ExternalID: href[strings.LastIndex(href, "/")+1:],
			Title:      title,
		}
		if ts, ok := sel.Closest("li, article, div").Find("time").Attr("datetime"); ok {
			if t, perr := time.Parse(time.RFC3339, ts); perr == nil {
				entry.UpdatedAt = t
			}
		}
		entries = append(entries, entry)
	})
	return entries, nil
}

func (s *noteSurface) DumpDebug(ctx context.Context, tag string) {
	if s.stateDir == "" {
		return
	}
	dir := filepath.Join(s.stateDir, "debug")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	var loc, html string
	var shot []byte
	_ = s.run(s.opTimeout,
		chromedp.Location(&loc),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.CaptureScreenshot(&shot),
	)
	_ = os.WriteFile(filepath.Join(dir, "url_"+tag+".txt"), []byte(loc), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "page_"+tag+".html"), []byte(html), 0o644)
	if len(shot) > 0 {
		_ = os.WriteFile(filepath.Join(dir, "screen_"+tag+".png"), shot, 0o644)
	}
	s.logger.Info("debug dump written", slog.String("tag", tag), slog.String("dir", dir))
}

func (s *noteSurface) Close() error {
	s.cancel()
	s.allocCancel()
	return nil
}

// jsString encodes a Go string as a JS string literal.
func jsString(v string) string {
	b, _ := json.Marshal(v)
	return string(b)
}
