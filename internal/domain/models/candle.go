package models

import (
	"fmt"

	"FinForge/internal/frame"
)

// Candle is one OHLCV bar. Timestamp is unix epoch milliseconds.
type Candle struct {
	Timestamp int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// CandlesFrame converts an ordered candle slice into a columnar frame with
// open/high/low/close/volume columns. Rows are taken as-is; the aligner is
// responsible for sorting and deduplication.
func CandlesFrame(candles []Candle) (*frame.Frame, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("no candles to convert")
	}
	ts := make([]int64, len(candles))
	open := make([]float64, len(candles))
	high := make([]float64, len(candles))
	low := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	vol := make([]float64, len(candles))
	for i, c := range candles {
		ts[i] = c.Timestamp
		open[i] = c.Open
		high[i] = c.High
		low[i] = c.Low
		closes[i] = c.Close
		vol[i] = c.Volume
	}
	f := frame.New(ts)
	for _, col := range []struct {
		name string
		vals []float64
	}{
		{"open", open},
		{"high", high},
		{"low", low},
		{"close", closes},
		{"volume", vol},
	} {
		if err := f.AddColumn(col.name, col.vals, nil); err != nil {
			return nil, fmt.Errorf("build candle frame: %w", err)
		}
	}
	return f, nil
}
