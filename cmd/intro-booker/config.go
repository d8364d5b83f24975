// Copyright IntroChat and each contributor.
// SPDX-License-Identifier: MIT

package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/introchat/intro-booking-service/internal/domain/models"
	"github.com/introchat/intro-booking-service/internal/logging"
	"github.com/introchat/intro-booking-service/internal/service"
	"github.com/introchat/intro-booking-service/pkg/utils"
)

// flags are the command line flags for the intro booking service.
type flags struct {
	Debug bool
	Port  string
	Bind  string
}

// environment are the environment variables for the intro booking service.
type environment struct {
	Port     string
	NatsURL  string
	Graph    graphConfig
	Calendar calendarConfig
	GroupIDs map[models.MeetingType]string
	Service  service.ServiceConfig
}

// graphConfig holds the Microsoft Graph credentials.
type graphConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
}

// calendarConfig holds the Google Calendar configuration.
type calendarConfig struct {
	ServiceAccountKeyFile string
	DelegatedUser         string
	BookingCalendarID     string
}

// parseFlags parses command line flags for the intro booking service
func parseFlags(defaultPort string) flags {
	var debug = flag.Bool("d", false, "enable debug logging")
	var port = flag.String("p", defaultPort, "health listen port")
	var bind = flag.String("bind", "*", "interface to bind on")

	flag.Usage = func() {
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()

	// Based on the debug flag, set the log level environment variable used by [logging.InitStructureLogConfig]
	if *debug {
		err := os.Setenv("LOG_LEVEL", "debug")
		if err != nil {
			slog.With(logging.ErrKey, err).Error("error setting log level")
			os.Exit(1)
		}
	}

	return flags{
		Debug: *debug,
		Port:  *port,
		Bind:  *bind,
	}
}

// parseEnv parses environment variables for the intro booking service
func parseEnv() environment {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}

	return environment{
		Port:     port,
		NatsURL:  natsURL,
		Graph:    parseGraphConfig(),
		Calendar: parseCalendarConfig(),
		GroupIDs: parseGroupIDs(),
		Service:  parseServiceConfig(),
	}
}

// parseGraphConfig parses the Microsoft Graph credentials from environment variables
func parseGraphConfig() graphConfig {
	tenantID := requireEnv("GRAPH_TENANT_ID")
	clientID := requireEnv("GRAPH_CLIENT_ID")
	clientSecret := requireEnv("GRAPH_CLIENT_SECRET")

	return graphConfig{
		TenantID:     tenantID,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}
}

// parseCalendarConfig parses the Google Calendar configuration from environment variables
func parseCalendarConfig() calendarConfig {
	keyFile := requireEnv("GOOGLE_SA_KEY_FILE")
	delegatedUser := requireEnv("GOOGLE_DELEGATED_USER")

	// Events land on the delegated user's calendar unless overridden.
	bookingCalendarID := utils.CoalesceString(os.Getenv("BOOKING_CALENDAR_ID"), delegatedUser)

	return calendarConfig{
		ServiceAccountKeyFile: keyFile,
		DelegatedUser:         delegatedUser,
		BookingCalendarID:     bookingCalendarID,
	}
}

// parseGroupIDs binds each meeting type to its directory group. The buddy
// programme falls back to the coffee group when not separately configured.
func parseGroupIDs() map[models.MeetingType]string {
	coffeeGroup := requireEnv("COFFEE_GROUP_ID")
	buddyGroup := utils.CoalesceString(os.Getenv("BUDDY_GROUP_ID"), coffeeGroup)

	return map[models.MeetingType]string{
		models.MeetingTypeCoffee: coffeeGroup,
		models.MeetingTypeBuddy:  buddyGroup,
	}
}

// parseServiceConfig parses the booking behavior configuration from environment variables
func parseServiceConfig() service.ServiceConfig {
	config := service.DefaultServiceConfig()

	if tz := os.Getenv("BOOKING_TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			slog.With(logging.ErrKey, err, "timezone", tz).Error("invalid BOOKING_TIMEZONE")
			os.Exit(1)
		}
		config.Location = loc
	}

	if window := os.Getenv("BOOKING_WINDOW_START"); window != "" {
		config.WindowStartHour, config.WindowStartMinute = parseClock(window, "BOOKING_WINDOW_START")
	}
	if window := os.Getenv("BOOKING_WINDOW_END"); window != "" {
		config.WindowEndHour, config.WindowEndMinute = parseClock(window, "BOOKING_WINDOW_END")
	}

	if minutes := envInt("SLOT_DURATION_MINUTES"); minutes > 0 {
		config.SlotDuration = time.Duration(minutes) * time.Minute
		config.SlotGranularity = config.SlotDuration
	}
	if days := envInt("CADENCE_BUSINESS_DAYS"); days > 0 {
		config.CadenceBusinessDays = days
	}
	if days := envInt("MAX_LOOKAHEAD_DAYS"); days > 0 {
		config.MaxLookaheadDays = days
	}
	if os.Getenv("ALLOW_REPEAT_PARTNERS") == "false" {
		config.AllowRepeatPartners = false
	}
	if timeout := os.Getenv("RUN_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil || d <= 0 {
			slog.With(logging.ErrKey, err, "timeout", timeout).Error("invalid RUN_TIMEOUT")
			os.Exit(1)
		}
		config.RunTimeout = d
	}

	config.Templates = parseTemplates()

	return config
}

// parseTemplates binds each meeting type to its event templates. The buddy
// templates fall back to the coffee ones, which fall back to the defaults.
func parseTemplates() map[models.MeetingType]models.EventTemplates {
	defaults := models.DefaultEventTemplates()

	coffee := models.EventTemplates{
		Title:       utils.CoalesceString(os.Getenv("COFFEE_EVENT_TITLE"), defaults.Title),
		Description: utils.CoalesceString(os.Getenv("COFFEE_EVENT_DESCRIPTION"), defaults.Description),
	}
	buddy := models.EventTemplates{
		Title:       utils.CoalesceString(os.Getenv("BUDDY_EVENT_TITLE"), coffee.Title),
		Description: utils.CoalesceString(os.Getenv("BUDDY_EVENT_DESCRIPTION"), coffee.Description),
	}

	return map[models.MeetingType]models.EventTemplates{
		models.MeetingTypeCoffee: coffee,
		models.MeetingTypeBuddy:  buddy,
	}
}

// parseClock parses an "HH:MM" value.
func parseClock(value, name string) (int, int) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		slog.With("value", value).Error(fmt.Sprintf("invalid %s, expected HH:MM", name))
		os.Exit(1)
	}
	hour, errH := strconv.Atoi(parts[0])
	minute, errM := strconv.Atoi(parts[1])
	if errH != nil || errM != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		slog.With("value", value).Error(fmt.Sprintf("invalid %s, expected HH:MM", name))
		os.Exit(1)
	}
	return hour, minute
}

func envInt(name string) int {
	value := os.Getenv(name)
	if value == "" {
		return 0
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.With(logging.ErrKey, err, "value", value).Error(fmt.Sprintf("invalid %s, expected integer", name))
		os.Exit(1)
	}
	return n
}

func requireEnv(name string) string {
	value := os.Getenv(name)
	if value == "" {
		slog.Error(name + " environment variable is required but not set")
		os.Exit(1)
	}
	return value
}
