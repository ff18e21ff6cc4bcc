package main

import "time"

type appConfig struct {
	Env             string        `env:"APP_ENV" envDefault:"development"`
	Name            string        `env:"APP_NAME" envDefault:"QR Menu"`
	LogLevel        string        `env:"LOG_LEVEL"`
	OpsEmail        string        `env:"OPS_EMAIL"`
	SweepInterval   time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
	RegistrationRPM int           `env:"REGISTRATION_RATE_LIMIT" envDefault:"10"`
	LoginRPM        int           `env:"LOGIN_RATE_LIMIT" envDefault:"20"`
	TablesColl      string        `env:"TABLES_COLLECTION" envDefault:"tables"`
}

func (c *appConfig) Validate() error {
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	if c.RegistrationRPM <= 0 {
		c.RegistrationRPM = 10
	}
	if c.LoginRPM <= 0 {
		c.LoginRPM = 20
	}
	return nil
}
