package main

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/surgeworks/surge/internal/common"
	"github.com/surgeworks/surge/internal/common/app"
	"github.com/surgeworks/surge/internal/resultingester"
	"github.com/surgeworks/surge/internal/resultingester/configuration"
)

const CustomConfigLocation string = "config"

func init() {
	pflag.StringSlice(CustomConfigLocation, []string{}, "Fully qualified path to application configuration file (for multiple config files repeat this arg or separate paths with commas)")
	pflag.Parse()
}

func main() {
	common.ConfigureLogging()
	common.BindCommandlineArguments()

	var config configuration.ResultIngesterConfiguration
	userSpecifiedConfigs := viper.GetStringSlice(CustomConfigLocation)
	common.LoadConfig(&config, "./config/resultingester", userSpecifiedConfigs)

	ctx := app.CreateContextWithShutdown()
	if err := resultingester.Run(ctx, &config); err != nil {
		log.Fatal(err)
	}
}
