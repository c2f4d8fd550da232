// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "harvest-go")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "harvest.log")
	viper.SetDefault("main.log.maxsize", 100)
	viper.SetDefault("main.log.maxbackups", 3)
	viper.SetDefault("main.log.maxage", 28)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "harvest.db")

	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "harvest")
	viper.SetDefault("output.mysql.password", "secret")
	viper.SetDefault("output.mysql.database", "harvest")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("fieldapi.enabled", false)
	viper.SetDefault("fieldapi.baseurl", "")
	viper.SetDefault("fieldapi.apitoken", "")
	viper.SetDefault("fieldapi.formid", "")
	viper.SetDefault("fieldapi.pagesize", 100)
	viper.SetDefault("fieldapi.timeout", 30*time.Second)
	viper.SetDefault("fieldapi.tokenttl", 55*time.Minute)

	viper.SetDefault("photos.enabled", true)
	viper.SetDefault("photos.directory", "photos/")
	viper.SetDefault("photos.fanout", 4)
	viper.SetDefault("photos.cachettl", 24*time.Hour)
	viper.SetDefault("photos.timeout", 30*time.Second)

	viper.SetDefault("ingest.maxweightgrams", 20000)
	viper.SetDefault("ingest.sentinelparcel", "NO-PARCEL")

	viper.SetDefault("webserver.enabled", false)
	viper.SetDefault("webserver.port", "8090")
}
