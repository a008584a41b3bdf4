package internal

import (
	"context"
	"evcp/internal/config"
	"evcp/models"
	"fmt"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"log"
	"time"
)

const (
	collectionLog           = "sys_log"
	collectionQueue         = "queue"
	collectionConfiguration = "configuration"
	collectionSubscriptions = "subscriptions"
	operationTimeout        = 10 * time.Second
)

// MongoDB every record carries the charge point id, so several charge points may share one database
type MongoDB struct {
	ctx           context.Context
	clientOptions *options.ClientOptions
	database      string
	chargePointId string
}

func NewMongoClient(conf *config.Config) (*MongoDB, error) {
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}
	client := &MongoDB{
		ctx:           context.Background(),
		clientOptions: clientOptions,
		database:      conf.Mongo.Database,
		chargePointId: conf.ChargePoint.Id,
	}
	return client, nil
}

func (m *MongoDB) connect() (*mongo.Client, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(m.ctx, operationTimeout)
	connection, err := mongo.Connect(ctx, m.clientOptions)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return connection, cancel, nil
}

func (m *MongoDB) disconnect(connection *mongo.Client, cancel context.CancelFunc) {
	defer cancel()
	err := connection.Disconnect(m.ctx)
	if err != nil {
		log.Println("mongodb disconnect error;", err)
	}
}

func (m *MongoDB) collection(connection *mongo.Client, name string) *mongo.Collection {
	return connection.Database(m.database).Collection(name)
}

func (m *MongoDB) WriteLogMessage(data Data) error {
	connection, cancel, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection, cancel)
	_, err = m.collection(connection, collectionLog).InsertOne(m.ctx, data)
	return err
}

// upsert replaces the document of this charge point where field equals value
func (m *MongoDB) upsert(table, field string, value interface{}, data interface{}) error {
	connection, cancel, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection, cancel)

	document, err := bson.Marshal(data)
	if err != nil {
		return err
	}
	var fields bson.M
	if err = bson.Unmarshal(document, &fields); err != nil {
		return err
	}
	delete(fields, "_id")
	fields["charge_point_id"] = m.chargePointId
	filter := bson.D{{Key: field, Value: value}, {Key: "charge_point_id", Value: m.chargePointId}}
	opts := options.Replace().SetUpsert(true)
	_, err = m.collection(connection, table).ReplaceOne(m.ctx, filter, fields, opts)
	return err
}

func (m *MongoDB) find(table string, sort bson.D, result interface{}) error {
	connection, cancel, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection, cancel)

	filter := bson.D{{Key: "charge_point_id", Value: m.chargePointId}}
	opts := options.Find()
	if sort != nil {
		opts.SetSort(sort)
	}
	cursor, err := m.collection(connection, table).Find(m.ctx, filter, opts)
	if err != nil {
		return err
	}
	return cursor.All(m.ctx, result)
}

func (m *MongoDB) SaveQueueEntry(entry *models.EnqueuedRequest) error {
	return m.upsert(collectionQueue, "id", entry.Id, entry)
}

func (m *MongoDB) DeleteQueueEntry(id string) error {
	return m.delete(collectionQueue, "id", id)
}

func (m *MongoDB) delete(table, field string, value interface{}) error {
	connection, cancel, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection, cancel)
	filter := bson.D{{Key: field, Value: value}, {Key: "charge_point_id", Value: m.chargePointId}}
	_, err = m.collection(connection, table).DeleteOne(m.ctx, filter)
	return err
}

func (m *MongoDB) GetQueueEntries() ([]*models.EnqueuedRequest, error) {
	var entries []*models.EnqueuedRequest
	if err := m.find(collectionQueue, bson.D{{Key: "sequence", Value: 1}}, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (m *MongoDB) SaveConfigurationEntry(entry *models.ConfigurationEntry) error {
	return m.upsert(collectionConfiguration, "key", entry.Key, entry)
}

func (m *MongoDB) GetConfigurationEntries() ([]*models.ConfigurationEntry, error) {
	var entries []*models.ConfigurationEntry
	if err := m.find(collectionConfiguration, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (m *MongoDB) GetSubscriptions() ([]models.UserSubscription, error) {
	var subscriptions []models.UserSubscription
	if err := m.find(collectionSubscriptions, nil, &subscriptions); err != nil {
		return nil, err
	}
	return subscriptions, nil
}

func (m *MongoDB) AddSubscription(subscription *models.UserSubscription) error {
	return m.upsert(collectionSubscriptions, "chat_id", subscription.ChatID, subscription)
}

func (m *MongoDB) DeleteSubscription(subscription *models.UserSubscription) error {
	return m.delete(collectionSubscriptions, "chat_id", subscription.ChatID)
}

// Close is a no-op, connections are opened per operation
func (m *MongoDB) Close() error {
	return nil
}
