// Package rclgo is a ROS 2 client library core for Go. It provides the
// pieces a client binding is built from: nodes and their endpoints, a
// wait set, clocks with simulated-time support, QoS profiles and
// compatibility checking, name resolution, and the action goal state
// machine.
//
// # Layout
//
// The library splits into small packages mirroring the concern each one
// owns:
//
//   - node: nodes, publishers, subscriptions, services, clients, timers
//   - waitset: blocking readiness aggregation and guard conditions
//   - rosclock: system, steady, and simulated ROS time with jump callbacks
//   - qos: quality-of-service profiles, presets, and compatibility checks
//   - names: topic and node name validation, expansion, and remapping
//   - action: action goal state machine, action server and client
//   - message: message interfaces, envelope framing, and the type codec
//   - transport: endpoint abstraction with an in-process bus and a NATS
//     adapter
//   - config: process configuration with file and environment sources
//   - metric: Prometheus collectors and the scrape endpoint
//
// # Typical use
//
// A process creates a node, creates endpoints on it, and drives them
// with a wait set:
//
//	n, err := node.New("talker", node.WithNamespace("/demo"))
//	if err != nil {
//		return err
//	}
//	defer n.Close()
//
//	sub, err := n.CreateSubscription("chatter", "std_msgs/msg/String", qos.ProfileDefault())
//	if err != nil {
//		return err
//	}
//
//	ws := waitset.New(waitset.Capacities{Subscriptions: 1})
//	for {
//		if err := ws.Add(sub); err != nil {
//			return err
//		}
//		res, err := ws.Wait(time.Second)
//		if err != nil {
//			return err
//		}
//		for range res.Subscriptions {
//			msg, _, err := sub.Take()
//			...
//		}
//	}
//
// The transport is selected by configuration: the in-process bus for
// single-process use and NATS for networked graphs, with TransientLocal
// durability mapped onto JetStream streams.
package rclgo
