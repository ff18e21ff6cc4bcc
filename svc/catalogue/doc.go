// Package catalogue is the registry of plan definitions.
//
// Plans are loaded from a Source (built-in defaults, a YAML file or the
// plans collection in MongoDB), validated, priced with a single inclusive VAT
// rate and published as an immutable Snapshot. Reads never block: a reload or
// seed builds a new snapshot and swaps it atomically, so a request holding
// a snapshot keeps seeing the same plans.
//
//	cat, err := catalogue.New(ctx, catalogue.NewStaticSource(), catalogue.WithVAT(vat))
//	paid, ok := cat.GetPlan(catalogue.PlanPaid) // paid.PriceTotal == 218900
package catalogue
