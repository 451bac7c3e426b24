// Package report renders orders and quotations to PDF through Gotenberg.
package report

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/fabtrack/fabtrack/internal/directory"
	"github.com/fabtrack/fabtrack/internal/orders"
	"github.com/fabtrack/fabtrack/internal/quotations"
	"github.com/fabtrack/fabtrack/internal/shared"
)

//go:embed templates/*.html
var templateFS embed.FS

// Converter turns HTML into PDF bytes.
type Converter interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// Renderer produces printable documents. It only reads the aggregates it is given.
type Renderer struct {
	converter Converter
	directory directory.Repository
	templates *template.Template
	printer   *message.Printer
	logger    *slog.Logger
	now       func() time.Time
}

// RendererOption customises a Renderer.
type RendererOption func(*Renderer)

// WithLanguage selects the locale used for number formatting.
func WithLanguage(tag language.Tag) RendererOption {
	return func(r *Renderer) {
		r.printer = message.NewPrinter(tag)
	}
}

// WithClock overrides the generation timestamp source.
func WithClock(now func() time.Time) RendererOption {
	return func(r *Renderer) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRenderer parses the embedded templates.
func NewRenderer(converter Converter, dir directory.Repository, logger *slog.Logger, opts ...RendererOption) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Renderer{
		converter: converter,
		directory: dir,
		printer:   message.NewPrinter(language.AmericanEnglish),
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	tmpl, err := template.New("report").Funcs(r.funcs()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse report templates: %w", err)
	}
	r.templates = tmpl
	return r, nil
}

type orderView struct {
	Title       string
	Order       *orders.Order
	Customer    string
	Fabricator  string
	Installer   string
	GeneratedAt time.Time
}

type quotationView struct {
	Title       string
	Quotation   *quotations.Quotation
	Customer    string
	Salesperson string
	GeneratedAt time.Time
}

// OrderHTML renders the work order sheet.
func (r *Renderer) OrderHTML(ctx context.Context, o *orders.Order) (string, error) {
	view := orderView{Title: "Work order " + o.Code, Order: o, GeneratedAt: r.now()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		view.Customer, err = r.customerName(gctx, o.CustomerID)
		return err
	})
	g.Go(func() (err error) {
		view.Fabricator, err = r.memberName(gctx, o.FabricatorID)
		return err
	})
	g.Go(func() (err error) {
		view.Installer, err = r.memberName(gctx, o.InstallerID)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", err
	}
	return r.execute("order.html", view)
}

// OrderPDF implements orders.Renderer.
func (r *Renderer) OrderPDF(ctx context.Context, o *orders.Order) ([]byte, error) {
	html, err := r.OrderHTML(ctx, o)
	if err != nil {
		return nil, err
	}
	return r.convert(ctx, "order", o.Code, html)
}

// QuotationHTML renders the customer facing quotation with per-group subtotals.
func (r *Renderer) QuotationHTML(ctx context.Context, q *quotations.Quotation) (string, error) {
	view := quotationView{Title: "Quotation " + q.Code, Quotation: q, GeneratedAt: r.now()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		view.Customer, err = r.customerName(gctx, q.CustomerID)
		return err
	})
	g.Go(func() (err error) {
		view.Salesperson, err = r.memberName(gctx, q.SalespersonID)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", err
	}
	return r.execute("quotation.html", view)
}

// QuotationPDF implements quotations.Renderer.
func (r *Renderer) QuotationPDF(ctx context.Context, q *quotations.Quotation) ([]byte, error) {
	html, err := r.QuotationHTML(ctx, q)
	if err != nil {
		return nil, err
	}
	return r.convert(ctx, "quotation", q.Code, html)
}

func (r *Renderer) convert(ctx context.Context, kind, code, html string) ([]byte, error) {
	start := r.now()
	pdf, err := r.converter.RenderHTML(ctx, html)
	if err != nil {
		return nil, fmt.Errorf("render %s %s: %w", kind, code, err)
	}
	r.logger.Debug("document rendered",
		slog.String("kind", kind),
		slog.String("code", code),
		slog.Int("bytes", len(pdf)),
		slog.Duration("took", r.now().Sub(start)))
	return pdf, nil
}

func (r *Renderer) execute(name string, view any) (string, error) {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, view); err != nil {
		return "", fmt.Errorf("execute %s: %w", name, err)
	}
	return buf.String(), nil
}

// customerName falls back to the bare id when the customer row is gone.
func (r *Renderer) customerName(ctx context.Context, id int64) (string, error) {
	c, err := r.directory.GetCustomer(ctx, id)
	if errors.Is(err, shared.ErrNotFound) {
		return fmt.Sprintf("#%d", id), nil
	}
	if err != nil {
		return "", fmt.Errorf("load customer %d: %w", id, err)
	}
	return c.Name, nil
}

func (r *Renderer) memberName(ctx context.Context, id *int64) (string, error) {
	if id == nil {
		return "-", nil
	}
	m, err := r.directory.GetMember(ctx, *id)
	if errors.Is(err, shared.ErrNotFound) {
		return fmt.Sprintf("#%d", *id), nil
	}
	if err != nil {
		return "", fmt.Errorf("load member %d: %w", *id, err)
	}
	return m.FullName, nil
}

func (r *Renderer) funcs() template.FuncMap {
	return template.FuncMap{
		"money": func(d decimal.Decimal) string {
			return r.printer.Sprint(number.Decimal(d.InexactFloat64(), number.Scale(2)))
		},
		"measure": func(d decimal.Decimal) string {
			return r.printer.Sprint(number.Decimal(d.InexactFloat64(), number.MaxFractionDigits(3)))
		},
		"date": func(t time.Time) string {
			return t.Format("2006-01-02")
		},
		"dateptr": func(t *time.Time) string {
			if t == nil {
				return "-"
			}
			return t.Format("2006-01-02")
		},
		"datetime": func(t time.Time) string {
			return t.UTC().Format("2006-01-02 15:04 MST")
		},
	}
}
