package redemption

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/kart-coupons/internal/domain/cart"
	"github.com/xenking/kart-coupons/internal/domain/coupon"
	"github.com/xenking/kart-coupons/internal/domain/money"
)

const instrumentationName = "github.com/xenking/kart-coupons/internal/domain/redemption"

// Options configures a Service. Zero values select no-op telemetry and the
// wall clock.
type Options struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Now            func() time.Time
}

func (o *Options) setDefaults() {
	if o.TracerProvider == nil {
		o.TracerProvider = tracenoop.NewTracerProvider()
	}
	if o.MeterProvider == nil {
		o.MeterProvider = metricnoop.NewMeterProvider()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Service finds, ranks and applies coupons for customer carts.
type Service struct {
	carts     CartProvider
	customers CustomerProvider
	coupons   CouponRepository
	ledger    Ledger
	now       func() time.Time

	tracer       trace.Tracer
	evaluations  metric.Int64Counter
	applications metric.Int64Counter
	discounts    metric.Float64Histogram
}

// NewService creates a Service.
func NewService(
	carts CartProvider,
	customers CustomerProvider,
	coupons CouponRepository,
	ledger Ledger,
	opts Options,
) (*Service, error) {
	opts.setDefaults()
	meter := opts.MeterProvider.Meter(instrumentationName)

	evaluations, err := meter.Int64Counter("coupons.evaluations",
		metric.WithDescription("Coupon evaluations by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "evaluations counter")
	}
	applications, err := meter.Int64Counter("coupons.applications",
		metric.WithDescription("Coupons applied to carts"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "applications counter")
	}
	discounts, err := meter.Float64Histogram("coupons.discount",
		metric.WithDescription("Discount granted per application"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "discount histogram")
	}

	return &Service{
		carts:        carts,
		customers:    customers,
		coupons:      coupons,
		ledger:       ledger,
		now:          opts.Now,
		tracer:       opts.TracerProvider.Tracer(instrumentationName),
		evaluations:  evaluations,
		applications: applications,
		discounts:    discounts,
	}, nil
}

// ApplicableCoupons returns the coupons applicable to the customer's cart,
// best first. An empty cart has no applicable coupons.
func (s *Service) ApplicableCoupons(ctx context.Context, customerID string) (_ []coupon.Result, rerr error) {
	ctx, span := s.tracer.Start(ctx, "redemption.ApplicableCoupons",
		trace.WithAttributes(attribute.String("customer.id", customerID)),
	)
	defer func() { endSpan(span, rerr) }()

	cust, err := s.customers.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	sn, err := s.carts.Snapshot(ctx, customerID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	if sn.IsEmpty() {
		return []coupon.Result{}, nil
	}

	all, err := s.coupons.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}
	results, err := s.rank(ctx, sn, all, cust.Context(s.now()))
	if err != nil {
		return nil, err
	}

	applicable := coupon.Applicable(results)
	span.SetAttributes(attribute.Int("coupons.applicable", len(applicable)))
	return applicable, nil
}

// BestCoupon returns the applicable coupon with the largest discount.
func (s *Service) BestCoupon(ctx context.Context, customerID string) (*coupon.Result, error) {
	results, err := s.ApplicableCoupons(ctx, customerID)
	if err != nil {
		return nil, err
	}
	best, ok := coupon.Best(results)
	if !ok {
		return nil, ErrNoApplicableCoupon
	}
	return &best, nil
}

// ApplyCoupon re-evaluates couponID against the customer's current cart
// and records the application.
func (s *Service) ApplyCoupon(ctx context.Context, customerID, couponID string) (_ *Receipt, rerr error) {
	ctx, span := s.tracer.Start(ctx, "redemption.ApplyCoupon",
		trace.WithAttributes(
			attribute.String("customer.id", customerID),
			attribute.String("coupon.id", couponID),
		),
	)
	defer func() { endSpan(span, rerr) }()

	cust, err := s.customers.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	sn, err := s.carts.Snapshot(ctx, customerID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	if sn.IsEmpty() {
		return nil, ErrEmptyCart
	}
	c, err := s.coupons.Get(ctx, couponID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	res, err := coupon.Assess(c, sn, cust.Context(now))
	if err != nil {
		return nil, err
	}
	s.evaluations.Add(ctx, 1, metric.WithAttributes(reasonAttr(res)))
	if !res.Applicable {
		return nil, &IneligibleError{CouponID: c.ID, Reason: res.Reason}
	}

	original := money.Round(sn.Total())
	_, exclusive := cust.ExclusiveUses[c.ID]
	app := Application{
		ID:            uuid.New(),
		CustomerID:    customerID,
		CouponID:      c.ID,
		CouponType:    c.Type(),
		Discount:      res.Discount,
		OriginalTotal: original,
		FinalTotal:    money.FloorAtZero(original.Sub(res.Discount)),
		AppliedAt:     now,
		Exclusive:     exclusive,
	}
	if err := s.ledger.Record(ctx, &app); err != nil {
		var inelig *IneligibleError
		if errors.As(err, &inelig) {
			return nil, err
		}
		return nil, errors.Wrap(err, "record application")
	}

	typeAttr := attribute.String("coupon.type", string(app.CouponType))
	s.applications.Add(ctx, 1, metric.WithAttributes(typeAttr))
	s.discounts.Record(ctx, app.Discount.InexactFloat64(), metric.WithAttributes(typeAttr))

	zctx.From(ctx).Info("Coupon applied",
		zap.String("customer_id", customerID),
		zap.String("coupon_id", c.ID),
		zap.Stringer("discount", app.Discount),
		zap.Stringer("final_total", app.FinalTotal),
		zap.Bool("exclusive", exclusive),
	)

	return &Receipt{
		Application: app,
		Items:       sn.Items(),
		Lines:       res.Lines,
	}, nil
}

// Evaluate ranks coupons against a cart supplied by the caller. Every
// coupon is present in the result, applicable ones first. A zero cust.Now
// is replaced by the service clock.
func (s *Service) Evaluate(ctx context.Context, sn *cart.Snapshot, coupons []coupon.Coupon, cust coupon.Customer) (_ []coupon.Result, rerr error) {
	ctx, span := s.tracer.Start(ctx, "redemption.Evaluate",
		trace.WithAttributes(attribute.Int("coupons.count", len(coupons))),
	)
	defer func() { endSpan(span, rerr) }()

	if cust.Now.IsZero() {
		cust.Now = s.now()
	}
	return s.rank(ctx, sn, coupons, cust)
}

// History returns the applications recorded for the customer.
func (s *Service) History(ctx context.Context, customerID string) ([]Application, error) {
	if _, err := s.customers.Get(ctx, customerID); err != nil {
		return nil, err
	}
	apps, err := s.ledger.History(ctx, customerID)
	if err != nil {
		return nil, errors.Wrap(err, "load history")
	}
	return apps, nil
}

func (s *Service) rank(ctx context.Context, sn *cart.Snapshot, coupons []coupon.Coupon, cust coupon.Customer) ([]coupon.Result, error) {
	results, err := coupon.Rank(sn, coupons, cust)
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		s.evaluations.Add(ctx, 1, metric.WithAttributes(reasonAttr(r)))
	}
	return results, nil
}

func reasonAttr(r coupon.Result) attribute.KeyValue {
	if r.Applicable {
		return attribute.String("outcome", "APPLICABLE")
	}
	return attribute.String("outcome", string(r.Reason))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
