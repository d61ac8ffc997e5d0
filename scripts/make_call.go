// make_call dials a vendor through Twilio with preset negotiation terms. The
// running bargainer server picks the call up on its voice webhook.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/desiyatra/bargainer/pkg/config"
	"github.com/desiyatra/bargainer/pkg/configutil"
	"github.com/desiyatra/bargainer/pkg/frames"
	"github.com/desiyatra/bargainer/pkg/transports"
	twiliotransport "github.com/desiyatra/bargainer/pkg/transports/twilio"
)

type preset struct {
	vendorType string
	target     int64
	floor      int64
	ceiling    int64
}

var presets = map[string]preset{
	"taxi":       {vendorType: "taxi", target: 700, floor: 500, ceiling: 900},
	"hotel":      {vendorType: "hotel", target: 2000, floor: 1500, ceiling: 2600},
	"restaurant": {vendorType: "restaurant", target: 1200, floor: 800, ceiling: 1500},
}

type transportFile struct {
	Transports config.ProviderConfig `mapstructure:"transports"`
}

func main() {
	configPath := flag.String("config", "examples/bargainer/config.example.yaml", "")
	to := flag.String("to", "", "vendor number")
	from := flag.String("from", "", "caller ID; defaults to from_number")
	presetName := flag.String("preset", "taxi", "taxi, hotel or restaurant")
	vendorName := flag.String("vendor_name", "", "")
	language := flag.String("language", "", "hi, hinglish or en")
	target := flag.Int64("target", 0, "override the preset target price")
	timeLimit := flag.Duration("time_limit", 5*time.Minute, "hard cap on call length")
	flag.Parse()

	if *to == "" {
		fmt.Println("usage: make_call -to=+91... [-preset=taxi|hotel|restaurant] [-config=...]")
		os.Exit(1)
	}
	p, ok := presets[strings.ToLower(*presetName)]
	if !ok {
		fmt.Printf("unknown preset %q, want one of %s\n", *presetName, strings.Join(presetNames(), ", "))
		os.Exit(1)
	}
	if *target > 0 {
		p.target = *target
	}

	tc, err := loadTwilioConfig(*configPath)
	if err != nil {
		fmt.Println("config error:", err)
		os.Exit(1)
	}
	params := map[string]string{
		frames.MetaVendorType:   p.vendorType,
		frames.MetaTargetPrice:  strconv.FormatInt(p.target, 10),
		frames.MetaFloorBound:   strconv.FormatInt(p.floor, 10),
		frames.MetaCeilingBound: strconv.FormatInt(p.ceiling, 10),
	}
	if *vendorName != "" {
		params[frames.MetaVendorName] = *vendorName
	}
	if *language != "" {
		params[frames.MetaLanguage] = *language
	}

	callSID, err := twiliotransport.NewDialer(tc).Dial(context.Background(), *to, *from, transports.DialOptions{
		Params:    params,
		TimeLimit: int(timeLimit.Seconds()),
	})
	if err != nil {
		fmt.Println("call error:", err)
		os.Exit(1)
	}
	fmt.Println("call_sid:", callSID)
}

func loadTwilioConfig(path string) (twiliotransport.Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return twiliotransport.Config{}, err
	}
	var file transportFile
	if err := v.Unmarshal(&file); err != nil {
		return twiliotransport.Config{}, err
	}
	secrets, err := config.LoadSecrets(config.DefaultSecretsPrefix)
	if err != nil {
		return twiliotransport.Config{}, err
	}
	cfg := config.Config{Transports: file.Transports}
	cfg.ApplySecrets(secrets)

	settings := cfg.Transports.Settings
	for k, val := range settings {
		if s, ok := val.(string); ok {
			settings[k] = os.ExpandEnv(s)
		}
	}
	var tc twiliotransport.Config
	if err := configutil.DecodeSettings(settings, &tc); err != nil {
		return twiliotransport.Config{}, err
	}
	if err := configutil.RequireString(tc.PublicURL, "transports.settings.public_url"); err != nil {
		return twiliotransport.Config{}, err
	}
	return tc, nil
}

func presetNames() []string {
	names := make([]string, 0, len(presets))
	for k := range presets {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
