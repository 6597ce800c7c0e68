package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/surgeworks/surge/internal/common"
	"github.com/surgeworks/surge/internal/launcher"
	"github.com/surgeworks/surge/internal/launcher/configuration"
	"github.com/surgeworks/surge/internal/launcher/fleet"
)

const CustomConfigLocation string = "config"

func init() {
	pflag.StringSlice(CustomConfigLocation, []string{}, "Fully qualified path to application configuration file (for multiple config files repeat this arg or separate paths with commas)")
	pflag.Parse()
}

func main() {
	common.ConfigureLogging()
	common.BindCommandlineArguments()

	var config configuration.LauncherConfiguration
	userSpecifiedConfigs := viper.GetStringSlice(CustomConfigLocation)
	common.LoadConfig(&config, "./config/launcher", userSpecifiedConfigs)
	if err := config.Validate(); err != nil {
		log.Fatal(err)
	}

	shutdownMetricServer := common.ServeMetrics(config.Metrics.Port)
	defer shutdownMetricServer()

	starter := fleet.NewProcessStarter(config.Worker.BinaryPath)
	router := launcher.NewRouter(launcher.NewLauncher(starter, config))

	log.Infof("Launcher listening on :%d", config.HttpPort)
	if err := router.Run(fmt.Sprintf(":%d", config.HttpPort)); err != nil {
		log.Fatal(err)
	}
}
