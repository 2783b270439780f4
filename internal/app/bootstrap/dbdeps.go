// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/circlehub/internal/app/system/mailer"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// MailQueue is nil when rabbitmq_url is blank.
	MailQueue *mailer.RabbitSender

	// bg collects the long-running pieces started after connect so
	// Shutdown can stop them. DBDeps is passed by value between hooks.
	bg *background
}
