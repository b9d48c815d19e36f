package autotrader

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultInterval = "1h"

// WatchItem is one symbol the auto trader scans.
type WatchItem struct {
	Symbol   string `yaml:"symbol" json:"symbol"`
	Interval string `yaml:"interval" json:"interval"`
	Market   string `yaml:"market" json:"market"`
}

// Watchlist is the YAML file format:
//
//	symbols:
//	  - symbol: BTC-USDT
//	    interval: 1h
//	    market: spot
type Watchlist struct {
	Symbols []WatchItem `yaml:"symbols"`
}

// LoadWatchlist reads and validates a watchlist file.
func LoadWatchlist(path string) (Watchlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Watchlist{}, fmt.Errorf("read watchlist: %w", err)
	}
	var wl Watchlist
	if err := yaml.Unmarshal(data, &wl); err != nil {
		return Watchlist{}, fmt.Errorf("parse watchlist %s: %w", path, err)
	}
	if len(wl.Symbols) == 0 {
		return Watchlist{}, errors.New("watchlist has no symbols")
	}
	for i := range wl.Symbols {
		item := &wl.Symbols[i]
		item.Symbol = strings.ToUpper(strings.TrimSpace(item.Symbol))
		if item.Symbol == "" {
			return Watchlist{}, fmt.Errorf("watchlist entry %d: symbol is empty", i)
		}
		if item.Interval == "" {
			item.Interval = defaultInterval
		}
		switch strings.ToLower(item.Market) {
		case "", "spot":
			item.Market = "spot"
		case "futures":
			item.Market = "futures"
		default:
			return Watchlist{}, fmt.Errorf("watchlist entry %s: unknown market %q", item.Symbol, item.Market)
		}
	}
	return wl, nil
}

// Items builds watch items for ad-hoc symbols, sharing one interval.
func Items(symbols []string, interval string) []WatchItem {
	if interval == "" {
		interval = defaultInterval
	}
	items := make([]WatchItem, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		items = append(items, WatchItem{Symbol: s, Interval: interval, Market: "spot"})
	}
	return items
}
