// Copyright (c) 2021 Nutanix, Inc.
/*
Package request implements the Request value exchanged with the message queue server and its
text wire format.

A request on the wire is a request line, an optional Content-Length header and an optional body:
	PUT /topic/weather HTTP/1.0\r\n
	Content-Length: 10\r\n
	\r\n
	rain today

Requests without a body carry no Content-Length header at all:
	GET /queue/alice HTTP/1.0\r\n
	\r\n

The resource paths understood by the server are built with TopicPath, SubscriptionPath and
QueuePath, or directly through the Publish, Subscribe, Unsubscribe and Fetch constructors.

Responses are read with ReadResponse. A response is successful only when its status line
contains "200 OK"; its body is exactly Content-Length bytes long and anything after it is ignored.
*/
package request
