// Copyright IntroChat and each contributor.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/introchat/intro-booking-service/internal/domain/models"
	"github.com/introchat/intro-booking-service/internal/infrastructure/calendar"
	"github.com/introchat/intro-booking-service/internal/infrastructure/messaging"
	"github.com/introchat/intro-booking-service/internal/infrastructure/store"
	"github.com/introchat/intro-booking-service/internal/logging"
	"github.com/introchat/intro-booking-service/internal/service"
)

// setupNATS connects to the NATS server. The connection reports into the
// graceful close wait group so shutdown can wait for it to fully close.
func setupNATS(env environment, gracefulCloseWG *sync.WaitGroup, done chan os.Signal) (*nats.Conn, error) {
	gracefulCloseWG.Add(1)
	natsConn, err := nats.Connect(
		env.NatsURL,
		nats.DrainTimeout(20*time.Second),
		nats.ConnectHandler(func(nc *nats.Conn) {
			slog.With("nats_url", nc.ConnectedUrl()).Info("connected to NATS server")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			if sub != nil {
				slog.With(logging.ErrKey, err, "subject", sub.Subject).Error("async NATS error")
				return
			}
			slog.With(logging.ErrKey, err).Error("async NATS error outside subscription")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			slog.Info("NATS connection closed")
			gracefulCloseWG.Done()
			// Trigger shutdown if the connection drops outside of it.
			select {
			case done <- os.Interrupt:
			default:
			}
		}),
	)
	if err != nil {
		gracefulCloseWG.Done()
		return nil, err
	}
	return natsConn, nil
}

// getKeyValueStores opens (creating on first run) the per-meeting-type roster
// buckets.
func getKeyValueStores(ctx context.Context, natsConn *nats.Conn) (map[models.MeetingType]store.INatsKeyValue, error) {
	js, err := jetstream.New(natsConn)
	if err != nil {
		return nil, err
	}

	kvStores := map[models.MeetingType]store.INatsKeyValue{}
	for _, meetingType := range models.MeetingTypes() {
		bucket, err := store.KVStoreNameForMeetingType(meetingType)
		if err != nil {
			return nil, err
		}
		kv, err := js.KeyValue(ctx, bucket)
		if errors.Is(err, jetstream.ErrBucketNotFound) {
			kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
				Bucket:      bucket,
				Description: "intro booking roster for the " + string(meetingType) + " programme",
				History:     1,
			})
		}
		if err != nil {
			return nil, err
		}
		kvStores[meetingType] = kv
	}
	return kvStores, nil
}

// setupCalendar builds the Google Calendar client from the service account
// key file.
func setupCalendar(ctx context.Context, env environment) (*calendar.GoogleClient, error) {
	credentials, err := os.ReadFile(env.Calendar.ServiceAccountKeyFile)
	if err != nil {
		return nil, err
	}
	return calendar.NewGoogleClient(ctx, calendar.Config{
		CredentialsJSON:   credentials,
		DelegatedUser:     env.Calendar.DelegatedUser,
		BookingCalendarID: env.Calendar.BookingCalendarID,
		TimeZone:          env.Service.Location.String(),
	})
}

// createNatsSubcriptions subscribes the booking service's queue group to the
// request subjects.
func createNatsSubcriptions(ctx context.Context, svc *service.BookingService, natsConn *nats.Conn) error {
	subjects := []string{
		models.BookIntrosSubject,
		models.RosterSyncSubject,
	}

	for _, subject := range subjects {
		_, err := natsConn.QueueSubscribe(subject, models.IntroBookingQueue, func(msg *nats.Msg) {
			svc.HandleMessage(ctx, messaging.NewNatsMessage(msg))
		})
		if err != nil {
			slog.With(logging.ErrKey, err, "subject", subject).Error("failed to subscribe to NATS subject")
			return err
		}
		slog.With("subject", subject, "queue", models.IntroBookingQueue).Info("subscribed to NATS subject")
	}

	return nil
}
