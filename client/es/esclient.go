package es

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
)

// ELASTICSEARCH_URL
var ActiveESClient *elasticsearch.Client

var IndexFunc = Index

func Bootstrap() {
	client, err := elasticsearch.NewDefaultClient()
	if err != nil {
		panic(err)
	}
	ActiveESClient = client
}

func Index(index string, id types.ID, doc interface{}) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(doc); err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      index,
		DocumentID: id.String(),
		Body:       bytes.NewReader(buf.Bytes()),
		Refresh:    "true",
	}

	res, err := req.Do(context.Background(), ActiveESClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		logrus.Warnf("[%s] error indexing document %s/%s", res.Status(), index, id.String())
	}
	return nil
}
