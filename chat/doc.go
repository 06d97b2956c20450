// Package chat connects the game to Twitch chat.
//
// It provides two pieces:
//   - Client: joins TWITCH_CHANNEL over IRC and hands every channel message
//     to a registered MessageHandler (the game engine). Without
//     TWITCH_OAUTH_TOKEN it connects anonymously and can only read.
//   - Messenger: the engine's outgoing side. Channel messages go through the
//     IRC client; whispers go through the Helix API, since IRC whispers are
//     no longer delivered by Twitch.
//
// Credentials: sending needs a bot username and an OAuth token with
// chat:read/chat:edit scopes; whispers also need a user token with the
// user:manage:whispers scope and the bot's user id.
package chat
