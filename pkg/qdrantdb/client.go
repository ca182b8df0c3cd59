package qdrantdb

import (
	"github.com/qdrant/go-client/qdrant"
)

type JobClient struct {
	Client     *qdrant.Client
	Collection string
}

func NewClient(host string, port int, apiKey, collection string) (*JobClient, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port, // gRPC port
		APIKey: apiKey,
	})
	if err != nil {
		return nil, err
	}
	if collection == "" {
		collection = JobCollectionName
	}
	return &JobClient{Client: client, Collection: collection}, nil
}

func (c *JobClient) Close() error {
	return c.Client.Close()
}
