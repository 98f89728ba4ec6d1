// Copyright (c) 2021 Nutanix, Inc.
/*
Package client provides a message queue client that publishes to topics, manages subscriptions and
retrieves the messages the server delivers to it, without the caller handling connections or
protocol framing.

A client is created from a Config, usually derived from the environment (MQ_NAME, MQ_HOST, MQ_PORT
and PUSH_GW) e.g.
	cfg := client.ConfigFromEnv()
	c, err := client.New(cfg)

Publish, Subscribe and Unsubscribe only queue a request and never block. They may be called before
Start; queued requests are sent once the client runs e.g.
	c.Subscribe("weather")
	c.Publish("weather", []byte("rain today"))

Start launches two background loops. The pusher sends queued requests to the server, one connection
per request. The puller repeatedly asks the server for the next message addressed to this client
and queues what it receives. Connection failures are retried with capped exponential backoff and
never reported to the caller.
	err = c.Start()

Retrieve waits for the next message. It returns false once the client has been stopped, which is
the signal for a listening goroutine to exit e.g.
	for {
		body, ok := c.Retrieve(ctx)
		if !ok {
			break
		}
		fmt.Printf("%s\n", body)
	}

Stop waits for both loops to finish; requests queued before Stop are still sent while the server
is reachable. Destroy then discards anything left in the queues.
	c.Stop()
	c.Destroy()

Each client keeps its metrics in a prometheus registry, available from Registry, and pushes them to
a prometheus push gateway when Config.PushGateway is set.
*/
package client
