package catalogue

// Config configures where plans come from and how they are priced.
type Config struct {
	VATRate   float64 `env:"VAT_RATE" envDefault:"0.1"`
	PlansFile string  `env:"PLANS_FILE"`
}
