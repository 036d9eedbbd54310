// Package automation implementa o contrato de superfície do fluxo de
// votação sobre um Chrome real via chromedp. Handles de elemento carregam
// query+índice e são re-resolvidos a cada ação, então sobrevivem aos
// re-renders constantes dos portais.
package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/horsebet/keiba-autovote/internal/vote"
)

type Options struct {
	Headless bool
	// ProfileDir reaproveita cookies/sessão entre jobs (mesmas credenciais,
	// mesmo portal). Vazio = contexto efêmero.
	ProfileDir string
	// SettleTimeout limita a espera de acomodação após cada ação.
	SettleTimeout time.Duration
}

type Driver struct {
	ctx     context.Context
	cancels []context.CancelFunc
	settle  time.Duration
	log     *zap.Logger
}

var _ vote.Surface = (*Driver)(nil)

// NewDriver sobe um browser exclusivo para uma sessão de votação.
func NewDriver(ctx context.Context, opts Options, log *zap.Logger) (*Driver, error) {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts, chromedp.Flag("headless", opts.Headless))
	if opts.ProfileDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.ProfileDir))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	settle := opts.SettleTimeout
	if settle <= 0 {
		settle = 15 * time.Second
	}

	d := &Driver{
		ctx:     tabCtx,
		cancels: []context.CancelFunc{cancelTab, cancelAlloc},
		settle:  settle,
		log:     log,
	}

	// Primeiro Run materializa o processo do browser.
	if err := chromedp.Run(tabCtx); err != nil {
		d.release()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	log.Info("browser session started",
		zap.Bool("headless", opts.Headless),
		zap.String("profile_dir", opts.ProfileDir),
	)
	return d, nil
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	return d.run(ctx, chromedp.Navigate(url))
}

// WaitSettle espera o documento terminar de carregar após a última ação.
func (d *Driver) WaitSettle(ctx context.Context) error {
	var ready bool
	return d.run(ctx, chromedp.Poll(
		`document.readyState === "complete"`,
		&ready,
		chromedp.WithPollingTimeout(d.settle),
	))
}

func (d *Driver) Locate(ctx context.Context, query string) ([]vote.Element, error) {
	nodes, err := d.nodes(ctx, query)
	if err != nil {
		return nil, err
	}
	els := make([]vote.Element, len(nodes))
	for i := range nodes {
		els[i] = vote.Element{Query: query, Index: i}
	}
	return els, nil
}

// Fill grava o valor direto na propriedade value e dispara input/change.
// Digitação simulada não serve: parte dos campos dos portais é oculta.
func (d *Driver) Fill(ctx context.Context, el vote.Element, text string) error {
	js := fmt.Sprintf(`(() => {
		const el = document.querySelectorAll(%q)[%d];
		if (!el) return false;
		el.value = %q;
		el.dispatchEvent(new Event("input", {bubbles: true}));
		el.dispatchEvent(new Event("change", {bubbles: true}));
		return true;
	})()`, el.Query, el.Index, text)
	return d.eval(ctx, el, js)
}

// SelectLabel marca a option cujo rótulo contém o texto e dispara change,
// igual a um operador escolhendo no dropdown.
func (d *Driver) SelectLabel(ctx context.Context, el vote.Element, label string) error {
	js := fmt.Sprintf(`(() => {
		const sel = document.querySelectorAll(%q)[%d];
		if (!sel) return false;
		for (const opt of sel.options) {
			if (opt.label.includes(%q) || opt.text.includes(%q)) {
				opt.selected = true;
				sel.dispatchEvent(new Event("change", {bubbles: true}));
				return true;
			}
		}
		return false;
	})()`, el.Query, el.Index, label, label)
	return d.eval(ctx, el, js)
}

func (d *Driver) Click(ctx context.Context, el vote.Element) error {
	node, err := d.resolve(ctx, el)
	if err != nil {
		return err
	}
	return d.run(ctx, chromedp.MouseClickNode(node))
}

func (d *Driver) Text(ctx context.Context, el vote.Element) (string, error) {
	node, err := d.resolve(ctx, el)
	if err != nil {
		return "", err
	}
	var text string
	if err := d.run(ctx, chromedp.Text([]cdp.NodeID{node.NodeID}, &text, chromedp.ByNodeID)); err != nil {
		return "", err
	}
	return text, nil
}

func (d *Driver) Count(ctx context.Context, query string) (int, error) {
	nodes, err := d.nodes(ctx, query)
	if err != nil {
		return 0, err
	}
	return len(nodes), nil
}

func (d *Driver) Wait(ctx context.Context, dur time.Duration) error {
	return d.run(ctx, chromedp.Sleep(dur))
}

// Close derruba a aba e o processo do browser; idempotente.
func (d *Driver) Close(ctx context.Context) error {
	err := chromedp.Cancel(d.ctx)
	d.release()
	d.log.Info("browser session closed")
	return err
}

func (d *Driver) release() {
	for _, cancel := range d.cancels {
		cancel()
	}
}

// run executa ações respeitando também o contexto do chamador.
func (d *Driver) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(d.ctx, actions...)
}

func (d *Driver) nodes(ctx context.Context, query string) ([]*cdp.Node, error) {
	var nodes []*cdp.Node
	if err := d.run(ctx, chromedp.Nodes(query, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, err
	}
	return nodes, nil
}

func (d *Driver) resolve(ctx context.Context, el vote.Element) (*cdp.Node, error) {
	nodes, err := d.nodes(ctx, el.Query)
	if err != nil {
		return nil, err
	}
	if el.Index >= len(nodes) {
		return nil, fmt.Errorf("element %q[%d] detached from page", el.Query, el.Index)
	}
	return nodes[el.Index], nil
}

func (d *Driver) eval(ctx context.Context, el vote.Element, js string) error {
	var ok bool
	if err := d.run(ctx, chromedp.Evaluate(js, &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("element %q[%d] detached from page", el.Query, el.Index)
	}
	return nil
}
