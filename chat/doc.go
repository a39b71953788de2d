// Package chat connects the clip queue to a Twitch channel's chat.
//
// A Listener joins TWITCH_CHANNEL over IRC and turns every message into
// engine input:
//   - messages starting with the command prefix (default "!cq") are parsed
//     as queue commands and executed with the sender's badges deciding
//     moderator privileges;
//   - any other message is scanned for links, and each link is submitted
//     under the sender's login name.
//
// Credentials: with TWITCH_BOT_USERNAME and TWITCH_OAUTH_TOKEN set the bot
// logs in as that account, otherwise it joins anonymously (read-only), which
// is all the listener needs.
package chat
