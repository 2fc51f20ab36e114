package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/streampi/streampi/internal/stream"
)

// StreamSettings mirrors the [stream] table of the config file. Zero values
// mean "decide for me": the setup flow fills device, format and size from
// camera probing.
type StreamSettings struct {
	Device      string   `toml:"device" json:"device"`
	VideoSize   string   `toml:"video_size,omitempty" json:"video_size,omitempty"`
	InputFormat string   `toml:"input_format,omitempty" json:"input_format,omitempty"`
	Delivery    string   `toml:"delivery,omitempty" json:"delivery,omitempty"`
	Codec       string   `toml:"codec,omitempty" json:"codec,omitempty"`
	Bitrate     string   `toml:"bitrate,omitempty" json:"bitrate,omitempty"`
	ExtraParams []string `toml:"extra_params,omitempty" json:"extra_params,omitempty"`
	RelayURL    string   `toml:"relay_url,omitempty" json:"relay_url,omitempty"`
	OutputPath  string   `toml:"output_path,omitempty" json:"output_path,omitempty"`
	DisableHLS  bool     `toml:"disable_hls,omitempty" json:"disable_hls,omitempty"`
}

// streamFile is the on-disk shape of the stream configuration.
type streamFile struct {
	Stream StreamSettings `toml:"stream"`
}

// ToStreamConfig converts persisted settings into a composer config.
func (s StreamSettings) ToStreamConfig() stream.Config {
	return stream.Config{
		Device:      s.Device,
		VideoSize:   s.VideoSize,
		InputFormat: s.InputFormat,
		Delivery:    stream.DeliveryMode(s.Delivery),
		Codec:       s.Codec,
		Bitrate:     s.Bitrate,
		ExtraParams: s.ExtraParams,
		RelayURL:    s.RelayURL,
		OutputPath:  s.OutputPath,
		DisableHLS:  s.DisableHLS,
	}
}

// LoadStreamSettings reads the [stream] table from a TOML config file.
func LoadStreamSettings(path string) (StreamSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return StreamSettings{}, fmt.Errorf("failed to read stream config: %w", err)
	}

	var file streamFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return StreamSettings{}, fmt.Errorf("failed to parse stream config: %w", err)
	}
	return file.Stream, nil
}

// SaveStreamSettings writes the [stream] table back to the config file,
// creating parent directories as needed. Other tables in an existing file
// are preserved.
func SaveStreamSettings(path string, settings StreamSettings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	full := make(map[string]any)
	if data, err := os.ReadFile(path); err == nil {
		if err := toml.Unmarshal(data, &full); err != nil {
			return fmt.Errorf("failed to parse existing config: %w", err)
		}
	}

	encoded, err := toml.Marshal(streamFile{Stream: settings})
	if err != nil {
		return fmt.Errorf("failed to marshal stream config: %w", err)
	}

	var table map[string]any
	if err := toml.Unmarshal(encoded, &table); err != nil {
		return fmt.Errorf("failed to decode stream table: %w", err)
	}
	full["stream"] = table["stream"]

	data, err := toml.Marshal(full)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write stream config: %w", err)
	}
	return nil
}
