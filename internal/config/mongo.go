package config

// MongoConfig is shared by the mongo history store and the mongo knowledge source.
type MongoConfig struct {
	URI      string `env:"MONGO_URI" yaml:"-"`
	Database string `env:"MONGO_DATABASE" yaml:"database" default:"medibot"`
}
