package kcheck

import (
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Reconcile compares required against observed.
//
// Every required symbol is either matched, mismatched (observed with a value
// outside its set) or missing. Symbols only present in observed are never
// reported.
func Reconcile(required *Requirements, observed *KernelConfig) *Report {
	report := &Report{
		Mismatches: []Mismatch{},
		Missing:    []string{},
	}
	if required == nil {
		return report
	}

	for _, symbol := range required.order {
		req := required.items[symbol]
		value, ok := observed.Get(symbol)
		if !ok {
			report.Missing = append(report.Missing, symbol)
			continue
		}
		if req.Allows(value) {
			report.Matched++
			continue
		}
		m := Mismatch{
			Symbol:   symbol,
			Kind:     req.Kind,
			Observed: value,
			Required: slices.Clone(req.Values),
		}
		if req.Kind == KindTernary {
			m.State = observed.Value(symbol)
		}
		report.Mismatches = append(report.Mismatches, m)
	}
	return report
}

// Check loads the requirements file and the kernel config concurrently and
// reconciles them. Either input failing to load fails the check.
func Check(requirementsPath, kernelConfigPath string, opts ...Option) (*Report, error) {
	o := newOptions(opts)

	var (
		required *Requirements
		observed *KernelConfig
		g        errgroup.Group
	)
	g.Go(func() error {
		var err error
		required, err = LoadRequirements(requirementsPath, opts...)
		return err
	})
	g.Go(func() error {
		var err error
		observed, err = ReadKernelConfig(kernelConfigPath, opts...)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := Reconcile(required, observed)
	o.logger.Info("checked kernel config",
		zap.String("requirements", requirementsPath),
		zap.String("kernel_config", kernelConfigPath),
		zap.Int("required", required.Len()),
		zap.Int("matched", report.Matched),
		zap.Int("mismatched", len(report.Mismatches)),
		zap.Int("missing", len(report.Missing)))
	return report, nil
}
