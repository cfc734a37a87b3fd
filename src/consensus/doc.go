/*
Package consensus implements validator selection.

A Selector keeps the set of registered validators and draws random subsets of
it to validate transactions and evaluate block proposals. Draws use a
cryptographically secure source and never repeat a validator. When fewer
validators are registered than the configured minimum quorum, every selection
fails with an InsufficientNodesError.

Local draws are independent on every node: two nodes asked to evaluate the same
block will generally pick different validators. SharedDraw, together with the
Commit/VerifyReveal/CombineReveals helpers, computes a draw that every node
holding the same seed and validator set agrees on.
*/
package consensus
