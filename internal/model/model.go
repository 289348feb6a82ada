package model

import (
	"github.com/LeonardoBeccarini/bloomwatch/internal/model/entities"
	"github.com/LeonardoBeccarini/bloomwatch/internal/model/messages"
)

// Aliases so services can refer to the common types through one import.

type (
	NDVISample         = messages.NDVISample
	BloomDetectedEvent = messages.BloomDetectedEvent
	ForecastReadyEvent = messages.ForecastReadyEvent
	NotifyResultEvent  = messages.NotifyResultEvent
	Region             = entities.Region
	BloomEvent         = entities.BloomEvent
	SeriesPoint        = entities.SeriesPoint
	Subscriber         = entities.Subscriber
)

const (
	KindObserved  = entities.KindObserved
	KindPredicted = entities.KindPredicted
)
