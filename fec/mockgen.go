package fec

//go:generate sh -c "go run go.uber.org/mock/mockgen -package fec -self_package github.com/streamdna/biasedlt/fec -destination mock_neighbor_policy_test.go github.com/streamdna/biasedlt/fec NeighborPolicy"
