// Package zookeeper reads consumer offsets from the legacy pre-0.9 offset
// storage layout: <prefix>/consumers/<group>/offsets/<topic>/<partition>.
package zookeeper

import (
	"context"
	"errors"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/lagscout/lagscout/internal/config"
	"github.com/lagscout/lagscout/internal/domain"
	"github.com/lagscout/lagscout/internal/utils"
)

// OffsetSource fetches consumer offsets from a Zookeeper ensemble. A fresh
// session is opened per fetch and closed when done, matching the check's
// run-and-disconnect cadence.
type OffsetSource struct {
	servers []string
	prefix  string
	timeout time.Duration
}

// NewOffsetSource creates an offset source for the given ensemble.
func NewOffsetSource(servers []string, prefix string, timeout time.Duration) *OffsetSource {
	if timeout <= 0 {
		timeout = config.DefaultZKTimeout * time.Second
	}
	return &OffsetSource{servers: servers, prefix: prefix, timeout: timeout}
}

// FetchOffsets reads committed offsets for the requested groups, discovering
// groups, topics, and partitions from child znodes wherever the
// configuration leaves them unspecified. Nil groups discovers everything.
func (s *OffsetSource) FetchOffsets(ctx context.Context, groups config.ConsumerGroups) (map[domain.GroupTopicPartition]int64, error) {
	conn, _, err := zk.Connect(s.servers, s.timeout, zk.WithLogInfo(false))
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	offsets := make(map[domain.GroupTopicPartition]int64)

	if len(groups) == 0 {
		names := s.children(conn, consumersPath(s.prefix), "consumer groups")
		groups = make(config.ConsumerGroups, len(names))
		for _, g := range names {
			groups[g] = nil
		}
	}

	for group, topics := range groups {
		if ctx.Err() != nil {
			return offsets, ctx.Err()
		}
		if len(topics) == 0 {
			names := s.children(conn, offsetsPath(s.prefix, group), "topics")
			topics = make(map[string][]int32, len(names))
			for _, t := range names {
				topics[t] = nil
			}
		}

		for topic, partitions := range topics {
			if len(partitions) == 0 {
				// partition ids are the child node names
				for _, p := range s.children(conn, topicPath(s.prefix, group, topic), "partitions") {
					id, err := strconv.ParseInt(p, 10, 32)
					if err != nil {
						utils.Logger.Warn("non-numeric partition node", "group", group, "topic", topic, "node", p)
						continue
					}
					partitions = append(partitions, int32(id))
				}
			}

			for _, partition := range partitions {
				node := partitionPath(s.prefix, group, topic, partition)
				data, _, err := conn.Get(node)
				if err != nil {
					if errors.Is(err, zk.ErrNoNode) {
						utils.Logger.Info("no zookeeper node", "path", node)
					} else {
						utils.Logger.Error("could not read consumer offset", "path", node, "err", err)
					}
					continue
				}
				offset, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
				if err != nil {
					utils.Logger.Error("malformed offset value", "path", node, "err", err)
					continue
				}
				offsets[domain.GroupTopicPartition{Group: group, Topic: topic, Partition: partition}] = offset
			}
		}
	}

	return offsets, nil
}

func (s *OffsetSource) children(conn *zk.Conn, zkPath, what string) []string {
	children, _, err := conn.Children(zkPath)
	if err != nil {
		if errors.Is(err, zk.ErrNoNode) {
			utils.Logger.Info("no zookeeper node", "path", zkPath)
		} else {
			utils.Logger.Error("could not read from zookeeper", "what", what, "path", zkPath, "err", err)
		}
		return nil
	}
	return children
}

func consumersPath(prefix string) string {
	return path.Join("/", prefix, "consumers")
}

func offsetsPath(prefix, group string) string {
	return path.Join(consumersPath(prefix), group, "offsets")
}

func topicPath(prefix, group, topic string) string {
	return path.Join(offsetsPath(prefix, group), topic)
}

func partitionPath(prefix, group, topic string, partition int32) string {
	return path.Join(topicPath(prefix, group, topic), strconv.Itoa(int(partition)))
}
