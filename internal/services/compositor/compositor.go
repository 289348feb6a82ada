package compositor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/LeonardoBeccarini/bloomwatch/internal/model/messages"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/logger"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/metrics"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/rabbitmq"
)

// CompositorService buffers raw scene samples per region and emits one
// maximum-value composite per cycle. Taking the window maximum is the
// standard MVC practice for NDVI: clouds only ever darken a reading, so
// the max is the cleanest view of the window.
type CompositorService struct {
	consumer          rabbitmq.IConsumer[messages.NDVISample]
	publisher         rabbitmq.IPublisher
	buffer            map[string][]messages.NDVISample // key is region ID
	mutex             sync.Mutex
	compositeInterval time.Duration
	maxCloudCover     float64
	log               zerolog.Logger
}

func NewCompositorService(consumer rabbitmq.IConsumer[messages.NDVISample], publisher rabbitmq.IPublisher, interval time.Duration, maxCloudCover float64) *CompositorService {
	if maxCloudCover <= 0 || maxCloudCover > 1 {
		maxCloudCover = 0.8
	}
	return &CompositorService{
		consumer:          consumer,
		publisher:         publisher,
		buffer:            make(map[string][]messages.NDVISample),
		compositeInterval: interval,
		maxCloudCover:     maxCloudCover,
		log:               logger.WithComponent("compositor"),
	}
}

func (c *CompositorService) messageHandler(_ string, message mqtt.Message) error {
	var sample messages.NDVISample
	if err := json.Unmarshal(message.Payload(), &sample); err != nil {
		return fmt.Errorf("unmarshal ndvi sample: %w", err)
	}
	if sample.RegionID == "" {
		return fmt.Errorf("sample without region id on %s", message.Topic())
	}
	if sample.Composite {
		// imports ride the composite topic directly; nothing to do here
		return nil
	}

	c.mutex.Lock()
	c.buffer[sample.RegionID] = append(c.buffer[sample.RegionID], sample)
	c.mutex.Unlock()

	c.log.Debug().Str("region", sample.RegionID).Float64("ndvi", sample.NDVI).Msg("sample buffered")
	return nil
}

// Start consumes raw samples and publishes composites on a ticker until
// ctx is cancelled.
func (c *CompositorService) Start(ctx context.Context) {
	c.consumer.SetHandler(c.messageHandler)
	go c.consumer.ConsumeMessage(ctx)

	ticker := time.NewTicker(c.compositeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.publisher.Close()
			return
		case <-ticker.C:
			c.compositeAndPublish()
		}
	}
}

func (c *CompositorService) compositeAndPublish() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for regionID, samples := range c.buffer {
		if len(samples) == 0 {
			continue
		}
		best, scenes := c.selectMax(regionID, samples)

		out := messages.NDVISample{
			RegionID:   regionID,
			NDVI:       best.NDVI,
			CloudCover: best.CloudCover,
			Source:     best.Source,
			Composite:  true,
			Timestamp:  best.Timestamp,
		}
		b, err := json.Marshal(out)
		if err != nil {
			c.log.Error().Err(err).Str("region", regionID).Msg("marshal composite")
			continue
		}
		topic := fmt.Sprintf("ndvi/composite/%s", regionID)
		if err := c.publisher.PublishToQos(topic, 1, false, string(b)); err != nil {
			c.log.Error().Err(err).Str("region", regionID).Msg("publish composite")
		} else {
			metrics.RecordComposite(regionID, scenes)
			c.log.Info().
				Str("region", regionID).
				Float64("ndvi", out.NDVI).
				Int("scenes", scenes).
				Time("at", out.Timestamp).
				Msg("composite published")
		}

		// reset buffer, keep capacity
		c.buffer[regionID] = samples[:0]
	}
}

// selectMax picks the max-NDVI sample among sufficiently clear scenes.
// If the whole window is cloudy it falls back to the max over everything
// rather than losing the window.
func (c *CompositorService) selectMax(regionID string, samples []messages.NDVISample) (messages.NDVISample, int) {
	best := messages.NDVISample{NDVI: -2}
	clear := 0
	for _, s := range samples {
		if s.CloudCover > c.maxCloudCover {
			metrics.IncCloudySampleDropped(regionID)
			continue
		}
		clear++
		if s.NDVI > best.NDVI {
			best = s
		}
	}
	if clear > 0 {
		return best, clear
	}

	best = samples[0]
	for _, s := range samples[1:] {
		if s.NDVI > best.NDVI {
			best = s
		}
	}
	return best, len(samples)
}
