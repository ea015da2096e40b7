// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/draft-engine/pkg/types"
)

// LoadTopic reads a topic spec from a YAML file:
//
//	title: Taming Connection Pools
//	description: Why services leak connections and how to stop it
//	keywords: [go, connection pools]
//	audience: backend engineers
//	tone: practical
func LoadTopic(path string) (types.TopicSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.TopicSpec{}, fmt.Errorf("reading topic file: %w", err)
	}

	var topic types.TopicSpec
	if err := yaml.Unmarshal(data, &topic); err != nil {
		return types.TopicSpec{}, fmt.Errorf("parsing topic file %s: %w", path, err)
	}
	if err := topic.Validate(); err != nil {
		return types.TopicSpec{}, fmt.Errorf("topic file %s: %w", path, err)
	}
	return topic, nil
}
